package collector

import (
	"context"
	"time"

	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/middleware"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/sirupsen/logrus"
)

// MiddlewareOptions configures a MiddlewareCollector.
type MiddlewareOptions struct {
	URL               string
	DialTimeout       time.Duration
	CallTimeout       time.Duration
	ReconnectInterval time.Duration
	// Subscribe lists the masks subscribed on every connect.
	Subscribe []string
	// Discover fetches services and their methods after connect.
	Discover bool
}

// MiddlewareCollector keeps a connection to the middleware open, reconnecting
// when it drops, and forwards everything the connection observes.
type MiddlewareCollector struct {
	opts   MiddlewareOptions
	logger *logrus.Entry

	connected func(*middleware.Client)
}

// NewMiddlewareCollector creates a new MiddlewareCollector.
func NewMiddlewareCollector(opts MiddlewareOptions, logger *logrus.Entry) *MiddlewareCollector {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 3 * time.Second
	}
	return &MiddlewareCollector{
		opts:   opts,
		logger: logger.WithField("collector", "middleware"),
	}
}

// OnConnect registers fn to be called with each new connection once it is
// subscribed and discovered.
func (c *MiddlewareCollector) OnConnect(fn func(*middleware.Client)) {
	c.connected = fn
}

// Name returns the collector's name.
func (c *MiddlewareCollector) Name() string { return "middleware" }

// Run connects and reconnects until ctx is canceled.
func (c *MiddlewareCollector) Run(ctx context.Context, st *store.Store, emit middleware.Emitter) error {
	for {
		c.session(ctx, emit)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

// session runs one connection from dial to disconnect.
func (c *MiddlewareCollector) session(ctx context.Context, emit middleware.Emitter) {
	client, err := middleware.Dial(ctx, c.opts.URL, middleware.Options{
		DialTimeout: c.opts.DialTimeout,
		CallTimeout: c.opts.CallTimeout,
		Emit:        emit,
		Logger:      c.logger,
	})
	if err != nil {
		c.logger.WithError(err).Debug("Middleware unavailable")
		return
	}
	defer client.Close()
	c.logger.Info("Connected to middleware")

	var subscribed []string
	for _, mask := range c.opts.Subscribe {
		if err := client.Subscribe(ctx, mask); err != nil {
			c.logger.WithError(err).WithField("mask", mask).Warn("Subscribe failed")
			continue
		}
		subscribed = append(subscribed, mask)
	}
	defer c.release(emit, subscribed)

	if c.opts.Discover {
		c.discover(ctx, client)
	}
	if c.connected != nil {
		c.connected(client)
	}

	select {
	case <-ctx.Done():
	case <-client.Done():
		c.logger.Warn("Lost connection to middleware")
	}
}

func (c *MiddlewareCollector) discover(ctx context.Context, client *middleware.Client) {
	services, err := client.DiscoverServices(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Service discovery failed")
		return
	}
	for _, svc := range services {
		if _, err := client.DiscoverMethods(ctx, svc.Name); err != nil {
			c.logger.WithError(err).WithField("service", svc.Name).Warn("Method discovery failed")
		}
	}
}

// release reports the session's subscriptions as gone so the store's counters
// track live subscriptions only.
func (c *MiddlewareCollector) release(emit middleware.Emitter, masks []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, mask := range masks {
		if err := emit(ctx, action.ServerAction(action.UnsubscribeFromMask{Mask: mask})); err != nil {
			c.logger.WithError(err).WithField("mask", mask).Debug("Failed to release subscription")
		}
	}
}
