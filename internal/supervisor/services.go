package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
)

// HTTPServer matches the lifecycle methods of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server as a supervised service.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server. shutdownTimeout bounds graceful shutdown.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Drainable runs a service whose Serve returns a terminal error once its
// input is exhausted. That error stops the service instead of restarting
// it.
type Drainable struct {
	name     string
	serve    func(ctx context.Context) error
	terminal error
}

// NewDrainable wraps serve. A return matching terminal ends supervision.
func NewDrainable(name string, serve func(ctx context.Context) error, terminal error) *Drainable {
	return &Drainable{name: name, serve: serve, terminal: terminal}
}

// Serve implements suture.Service.
func (d *Drainable) Serve(ctx context.Context) error {
	err := d.serve(ctx)
	if d.terminal != nil && errors.Is(err, d.terminal) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (d *Drainable) String() string { return d.name }
