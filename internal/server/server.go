package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/opsagent/internal/config"
	"github.com/cortexai/opsagent/internal/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg      *config.Config
	http     *http.Server
	backends *Backends
	limiter  *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	backends, err := NewBackends(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup backends: %w", err)
	}
	s := &Server{
		cfg:      cfg,
		backends: backends,
		limiter:  middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	}

	// Agent runs may take the whole request budget before the first byte is written.
	writeTimeout := time.Duration(0)
	if rt := cfg.RequestTimeout(); rt > 0 {
		writeTimeout = rt + 10*time.Second
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains connections and closes
// every backend client.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.limiter.Run(gctx, 5*time.Minute)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := s.backends.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("error closing clients")
	}
	return err
}
