package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/cli"
	"github.com/grovetools/mwstate/config"
	"github.com/grovetools/mwstate/internal/daemon/collector"
	"github.com/grovetools/mwstate/internal/daemon/engine"
	"github.com/grovetools/mwstate/internal/daemon/pidfile"
	"github.com/grovetools/mwstate/internal/daemon/server"
	"github.com/grovetools/mwstate/logging"
	"github.com/grovetools/mwstate/pkg/dispatcher"
	"github.com/grovetools/mwstate/pkg/paths"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/grovetools/mwstate/util/pathutil"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the middleware state daemon",
		Long:  "Keeps one middleware connection and serves its store to local clients over a unix socket.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

// socketPath returns the configured daemon socket or the default one.
func socketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Daemon.Socket != "" {
		if expanded, err := pathutil.Expand(cfg.Daemon.Socket); err == nil {
			return expanded
		}
		return cfg.Daemon.Socket
	}
	return paths.SocketPath()
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the mwstate daemon in foreground mode.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "mwstated")
			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create state directories: %w", err)
			}
			pidPath := paths.PidFilePath()
			sockPath := socketPath(cfg)

			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			d := dispatcher.New()
			st := store.New(d, store.WithLogger(logger.WithField("component", "store")))
			eng := engine.New(d, logger, cfg.Daemon.QueueSize)
			eng.SetStore(st)

			mw := cfg.Middleware
			if mw.URL != "" {
				eng.Register(collector.NewMiddlewareCollector(collector.MiddlewareOptions{
					URL:               mw.URL,
					DialTimeout:       mw.DialTimeout.Std(),
					CallTimeout:       mw.CallTimeout.Std(),
					ReconnectInterval: mw.ReconnectInterval.Std(),
					Subscribe:         mw.Subscribe,
					Discover:          mw.DiscoverEnabled(),
				}, logger.WithField("component", "middleware")))
			} else {
				logger.Warn("No middleware.url configured; serving an empty store")
			}

			srv := server.New(logger)
			srv.SetEngine(eng)
			srv.SetRunningConfig(&server.RunningConfig{
				MiddlewareURL: mw.URL,
				Subscribe:     mw.Subscribe,
				Discover:      mw.DiscoverEnabled(),
				QueueSize:     cfg.Daemon.QueueSize,
				ConfigFile:    cfgPath,
				StartedAt:     time.Now(),
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				logger.Info("Received stop signal")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			go eng.Start(ctx)

			logger.WithField("pid", os.Getpid()).WithField("socket", sockPath).Info("Starting daemon")
			if err := srv.ListenAndServe(sockPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.Warn("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			pretty.Success(fmt.Sprintf("Sent SIGTERM to process %d", pid))
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.Warn("Stopped")
				os.Exit(1) // non-zero for scripts
			}
			pretty.Success("Running")
			pretty.Field("PID", pid)
			pretty.Field("Socket", socketPath(cfg))
			return nil
		},
	}
}
