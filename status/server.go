// Package status serves the agent's health and counters over HTTP.
package status

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/justapithecus/snapfeed/metrics"
	"github.com/justapithecus/snapfeed/types"
)

// SizeReader reports the current capture buffer size.
type SizeReader interface {
	Size() int
}

// Config configures the status server.
type Config struct {
	// Listen is the listen address, e.g. ":8080" (required).
	Listen string
	// Mode is the active transport mode.
	Mode types.TransportMode
	// Sizer reports the current buffer size. Optional.
	Sizer SizeReader
	// Collector provides counters. Optional; a nil collector reports zeros.
	Collector *metrics.Collector
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Stats is the /stats response body.
type Stats struct {
	Version    string           `json:"version"`
	Mode       string           `json:"mode"`
	BufferSize int              `json:"buffer_size"`
	UptimeSec  int64            `json:"uptime_sec"`
	Metrics    metrics.Snapshot `json:"metrics"`
}

// Server is the status HTTP server.
type Server struct {
	app     *fiber.App
	config  Config
	started time.Time
}

// NewServer creates a status server. Routes:
//
//	GET /healthz  -> 200 "ok"
//	GET /stats    -> Stats as JSON
func NewServer(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		return nil, errors.New("status server requires a listen address")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{config: cfg, started: cfg.Now()}

	app := fiber.New(fiber.Config{
		AppName:               "snapfeed",
		DisableStartupMessage: true,
	})
	app.Get("/healthz", s.handleHealth)
	app.Get("/stats", s.handleStats)

	s.app = app
	return s, nil
}

// App returns the underlying fiber app (for testing with app.Test).
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve listens until ctx is canceled, then shuts down gracefully.
// Returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.config.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats := Stats{
		Version:   types.Version,
		Mode:      s.config.Mode.String(),
		UptimeSec: int64(s.config.Now().Sub(s.started) / time.Second),
		Metrics:   s.config.Collector.Snapshot(),
	}
	if s.config.Sizer != nil {
		stats.BufferSize = s.config.Sizer.Size()
	}
	return c.JSON(stats)
}
