package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/config"
	"github.com/afo-kingdom/chancellor/internal/logging"
	httpadapter "github.com/afo-kingdom/chancellor/pkg/adapters/http"
	mcpadapter "github.com/afo-kingdom/chancellor/pkg/adapters/mcp"
	"github.com/afo-kingdom/chancellor/pkg/observability"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions configures the long-running server.
type ServeOptions struct {
	Options
	Addr    string
	MCPAddr string
	Watch   bool
}

// Serve runs the HTTP API until ctx is done. With MCPAddr set the MCP SSE
// transport runs alongside it, and with Watch the config file is reloaded
// on change.
func Serve(ctx context.Context, opts ServeOptions) error {
	metrics := observability.NewMetrics()
	env, err := NewEnv(opts.Options, chancellor.WithLifecycleHooks(metrics.Hooks()))
	if err != nil {
		return err
	}
	defer env.Close()

	addr := opts.Addr
	if addr == "" {
		addr = env.Config.HTTPAddr
	}
	handler := httpadapter.NewHandler(env.Engine,
		httpadapter.WithMetricsHandler(metrics.Handler()),
		httpadapter.WithLogger(env.Logger),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.Logger.Info("HTTP Server listening", "address", addr, "store", env.Config.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		env.Logger.Info("HTTP Server stopped")
		return nil
	})

	if opts.MCPAddr != "" {
		mcpServer := mcpadapter.NewServer(env.Engine, env.Logger)
		g.Go(func() error {
			return mcpServer.ServeSSE(ctx, opts.MCPAddr, "http://"+hostPort(opts.MCPAddr))
		})
	}

	if opts.Watch {
		path := opts.ConfigPath
		if path == "" {
			path = config.DefaultPath
		}
		updates, err := config.Watch(ctx, path, env.Logger)
		if err != nil {
			env.Logger.Warn("config watch disabled", "path", path, "err", err)
		} else {
			g.Go(func() error {
				applyReloads(updates, env.Level, env.Logger)
				return nil
			})
		}
	}

	return g.Wait()
}

// applyReloads applies the hot-reloadable settings until updates is closed.
// Only the log level changes at runtime; store and gate settings need a restart.
func applyReloads(updates <-chan config.Config, level *slog.LevelVar, logger *slog.Logger) {
	for cfg := range updates {
		l, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warn("ignoring reloaded log level", "err", err)
			continue
		}
		if l != level.Level() {
			level.Set(l)
			logger.Info("log level changed", "level", l)
		}
	}
}

func hostPort(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
