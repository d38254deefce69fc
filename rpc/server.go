package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/clones/observability"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server serves a Backend over HTTP.
type Server struct {
	http     *http.Server
	observer observability.Observer
}

// NewServer mounts the service for b on a new HTTP server listening on
// cfg.Addr. Every call is reported to o.
func NewServer(cfg *Config, b Backend, o observability.Observer) *Server {
	if o == nil {
		o = observability.NoOpObserver{}
	}

	path, handler := NewHandler(b, connect.WithInterceptors(ObserverInterceptor(o)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		observer: o,
	}
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		observability.Emit(ctx, s.observer, observability.Event{
			Type:   EventServe,
			Level:  observability.LevelInfo,
			Source: "rpc.Server",
			Data:   map[string]any{"addr": ln.Addr().String()},
		})
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}
