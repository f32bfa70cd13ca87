package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/database"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-verify/internal/verify"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Verifier is the verification core as seen by the HTTP layer.
// *verify.Verifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, deviceID string, timeout time.Duration) verify.Result
	Clear() int
	CacheSize() int
	Stats() verify.Stats
	History(ctx context.Context, deviceID string, limit int) ([]verify.Attempt, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Verify   config.VerifyConfig
	Logger   *logging.Logger
	Verifier Verifier
	DB       *database.DB // optional: pool stats in /metrics and a health check
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	verifier  Verifier
	validator *verify.Validator
	db        *database.DB
	version   string

	defaultTimeout time.Duration
	maxTimeout     time.Duration

	startTime time.Time
	server    *http.Server
	addr      net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing or the ID pattern is invalid
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}

	validator, err := verify.NewValidator(deps.Verify.DeviceIDPattern)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:            deps.Config,
		logger:         deps.Logger,
		verifier:       deps.Verifier,
		validator:      validator,
		db:             deps.DB,
		version:        deps.Version,
		defaultTimeout: deps.Verify.DefaultTimeout(),
		maxTimeout:     deps.Verify.MaxTimeout(),
		startTime:      time.Now(),
	}
	if s.defaultTimeout <= 0 {
		s.defaultTimeout = verify.DefaultTimeout
	}
	if s.maxTimeout < s.defaultTimeout {
		s.maxTimeout = s.defaultTimeout
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it; tests can drive it
// directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine.
//
// Binding happens synchronously so an address already in use is reported
// here rather than only logged.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	s.logger.Info("API server listening", "address", s.addr.String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests (including running
// verifications) to complete, then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
