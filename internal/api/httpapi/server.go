package httpapi

import (
	"context"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server wraps the device API in an h2c-capable HTTP server.
type Server struct {
	srv *http.Server
}

// NewServer creates a server for the handler on addr.
func NewServer(addr string, h *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: h2c.NewHandler(h.Routes(), &http2.Server{}),
		},
	}
}

// Start runs the server until it fails or is shut down. The returned
// channel carries at most one error.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("httpapi: listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
