package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/logging"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/models"
	"github.com/sirupsen/logrus"
)

// Emitter receives the actions produced by a Client.
type Emitter func(ctx context.Context, p action.Payload) error

// Options configures a Client.
type Options struct {
	// DialTimeout bounds the websocket handshake. Zero means no limit beyond ctx.
	DialTimeout time.Duration
	// CallTimeout bounds every request that waits for a reply. Zero means no limit beyond ctx.
	CallTimeout time.Duration
	// PingInterval enables keepalive pings when positive.
	PingInterval time.Duration
	// Emit receives SERVER_ACTION payloads. Nil discards them.
	Emit   Emitter
	Logger *logrus.Entry
	Dialer *websocket.Dialer
}

// Client is a connection to the middleware.
type Client struct {
	url    string
	conn   *websocket.Conn
	opts   Options
	logger *logrus.Entry

	// ctx lives as long as the connection and scopes every emission.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the middleware at url.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("middleware")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	dialCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, mwerrors.Wrap(err, mwerrors.ErrCodeNotConnected, fmt.Sprintf("failed to connect to %s", url)).
			WithDetail("url", url)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:     url,
		conn:    conn,
		opts:    opts,
		logger:  opts.Logger.WithField("url", url),
		ctx:     connCtx,
		cancel:  cancel,
		pending: make(map[string]chan Frame),
		done:    make(chan struct{}),
	}

	go c.readLoop()
	if opts.PingInterval > 0 {
		go c.pingLoop(opts.PingInterval)
	}
	c.logger.Debug("Connected to middleware")
	return c, nil
}

// URL returns the address the client is connected to.
func (c *Client) URL() string {
	return c.url
}

// Done is closed when the connection ends, whether by Close or by the peer.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down and fails every outstanding request.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

// Call invokes method with args and returns the raw result document.
func (c *Client) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	reply, err := c.request(ctx, NamespaceRPC, NameCall, method, CallArgs{Method: method, Args: args})
	if err != nil {
		return nil, err
	}
	return reply.Args, nil
}

// Subscribe subscribes to event masks. Each acknowledged mask is reported as
// a SUBSCRIBE_TO_MASK action; a failed report stops the loop and is returned,
// and masks after it are not reported.
func (c *Client) Subscribe(ctx context.Context, masks ...string) error {
	if len(masks) == 0 {
		return nil
	}
	if _, err := c.request(ctx, NamespaceEvents, NameSubscribe, "events.subscribe", masks); err != nil {
		return err
	}
	for _, mask := range masks {
		if err := c.report(ctx, action.SubscribeToMask{Mask: mask}); err != nil {
			return fmt.Errorf("subscribed to %q but could not report it: %w", mask, err)
		}
	}
	return nil
}

// Unsubscribe releases event masks. Each acknowledged mask is reported as an
// UNSUBSCRIBE_FROM_MASK action.
func (c *Client) Unsubscribe(ctx context.Context, masks ...string) error {
	if len(masks) == 0 {
		return nil
	}
	if _, err := c.request(ctx, NamespaceEvents, NameUnsubscribe, "events.unsubscribe", masks); err != nil {
		return err
	}
	for _, mask := range masks {
		if err := c.report(ctx, action.UnsubscribeFromMask{Mask: mask}); err != nil {
			return fmt.Errorf("unsubscribed from %q but could not report it: %w", mask, err)
		}
	}
	return nil
}

// DiscoverServices fetches the service list and reports it as RECEIVE_RPC_SERVICES.
func (c *Client) DiscoverServices(ctx context.Context) ([]models.RPCService, error) {
	raw, err := c.Call(ctx, MethodGetServices)
	if err != nil {
		return nil, err
	}
	var services []models.RPCService
	if err := json.Unmarshal(raw, &services); err != nil {
		return nil, mwerrors.Wrap(err, mwerrors.ErrCodeRPCError, "failed to decode service list").
			WithDetail("method", MethodGetServices)
	}
	if services == nil {
		services = []models.RPCService{}
	}
	c.emit(action.ReceiveRPCServices{Services: services})
	return services, nil
}

// DiscoverMethods fetches one service's methods and reports them as
// RECEIVE_RPC_SERVICE_METHODS.
func (c *Client) DiscoverMethods(ctx context.Context, service string) ([]models.RPCMethod, error) {
	raw, err := c.Call(ctx, MethodGetMethods, service)
	if err != nil {
		return nil, err
	}
	var methods []models.RPCMethod
	if err := json.Unmarshal(raw, &methods); err != nil {
		return nil, mwerrors.Wrap(err, mwerrors.ErrCodeRPCError, "failed to decode method list").
			WithDetail("method", MethodGetMethods).
			WithDetail("service", service)
	}
	if methods == nil {
		methods = []models.RPCMethod{}
	}
	c.emit(action.ReceiveRPCServiceMethods{Service: service, Methods: methods})
	return methods, nil
}

// request sends a frame and waits for the reply carrying the same id.
// label names the operation in errors.
func (c *Client) request(ctx context.Context, namespace, name, label string, args any) (Frame, error) {
	id := uuid.NewString()
	frame, err := newFrame(namespace, name, id, args)
	if err != nil {
		return Frame{}, mwerrors.Wrap(err, mwerrors.ErrCodeInvalidInput, "failed to encode request arguments").
			WithDetail("method", label)
	}

	reply := make(chan Frame, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, mwerrors.NotConnected(c.url)
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer c.forget(id)

	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	if err := c.write(frame); err != nil {
		return Frame{}, err
	}

	select {
	case f, ok := <-reply:
		if !ok {
			return Frame{}, mwerrors.NotConnected(c.url)
		}
		if f.Name == NameError {
			var e ErrorArgs
			if err := json.Unmarshal(f.Args, &e); err != nil {
				e.Message = string(f.Args)
			}
			return Frame{}, mwerrors.RPCError(label, e.Code, e.Message)
		}
		return f, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Frame{}, mwerrors.RPCTimeout(label, c.opts.CallTimeout.String())
		}
		return Frame{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return mwerrors.Wrap(err, mwerrors.ErrCodeNotConnected, "failed to write to middleware").
			WithDetail("url", c.url)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Middleware closed the connection")
			} else if !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.WithError(err).Debug("Middleware read failed")
			}
			return
		}

		switch {
		case f.isReply():
			c.deliver(f)
		case f.Namespace == NamespaceEvents && f.Name == NameEvent:
			c.handleEvent(f)
		default:
			c.logger.WithFields(logrus.Fields{
				"namespace": f.Namespace,
				"name":      f.Name,
			}).Debug("Ignoring unexpected frame")
		}
	}
}

func (c *Client) deliver(f Frame) {
	c.mu.Lock()
	reply, ok := c.pending[f.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.WithField("id", f.ID).Debug("Dropping reply for unknown request")
		return
	}
	select {
	case reply <- f:
	default:
		c.logger.WithField("id", f.ID).Debug("Dropping duplicate reply")
	}
}

func (c *Client) handleEvent(f Frame) {
	var e models.Event
	if err := json.Unmarshal(f.Args, &e); err != nil {
		c.logger.WithError(err).Warn("Failed to decode middleware event")
		return
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	c.emit(action.MiddlewareEvent{EventData: e})
}

// report emits a under the caller's ctx, so a connection that drops after an
// acknowledgement cannot cancel the report of it.
func (c *Client) report(ctx context.Context, a action.Action) error {
	if c.opts.Emit == nil {
		return nil
	}
	return c.opts.Emit(ctx, action.ServerAction(a))
}

func (c *Client) emit(a action.Action) {
	if c.opts.Emit == nil {
		return
	}
	if err := c.opts.Emit(c.ctx, action.ServerAction(a)); err != nil && c.ctx.Err() == nil {
		c.logger.WithError(err).WithField("type", string(a.Kind())).Error("Failed to emit action")
	}
}

func (c *Client) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.WithError(err).Debug("Ping failed")
				return
			}
		}
	}
}

// shutdown fails outstanding requests and marks the client done.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		for id, reply := range c.pending {
			close(reply)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		_ = c.conn.Close()
		c.cancel()
		close(c.done)
	})
}
