package diag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Server runs the diagnostics router on one address.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

func NewServer(addr string, gatherer prometheus.Gatherer, history HistorySource, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "diag").Logger()
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(gatherer, history, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("Diagnostics server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// The parent context is already cancelled; give shutdown its own deadline
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("diagnostics server shutdown: %w", err)
		}
		s.logger.Info().Msg("Diagnostics server stopped")
		return nil
	case err := <-errChan:
		return fmt.Errorf("diagnostics server failed: %w", err)
	}
}
