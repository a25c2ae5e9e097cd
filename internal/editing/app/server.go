// Package server wires the editing runtime: config, storage, service, HTTP
// router, and the background maintenance sweep.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prosessportal/editing/internal/editing/api"
	"github.com/prosessportal/editing/internal/editing/service"
	sqlitestore "github.com/prosessportal/editing/internal/editing/storage/sqlite"
	"github.com/prosessportal/editing/internal/platform/config"
	"github.com/prosessportal/editing/internal/platform/logging"
	"github.com/prosessportal/editing/internal/platform/metrics"
	"github.com/prosessportal/editing/internal/platform/timeouts"
)

type serverEnv struct {
	DBPath                string `env:"PROSESSPORTAL_EDITING_DB_PATH"`
	HTTPAddr              string `env:"PROSESSPORTAL_EDITING_HTTP_ADDR"`
	SessionTimeoutMin     int    `env:"PROSESSPORTAL_EDITING_SESSION_TIMEOUT_MIN"`
	LockTimeoutMin        int    `env:"PROSESSPORTAL_EDITING_LOCK_TIMEOUT_MIN"`
	MaxConcurrentSessions int    `env:"PROSESSPORTAL_EDITING_MAX_CONCURRENT_SESSIONS"`
	AutoSaveIntervalSec   int    `env:"PROSESSPORTAL_EDITING_AUTOSAVE_INTERVAL_SEC"`
	CleanupIntervalSec    int    `env:"PROSESSPORTAL_EDITING_CLEANUP_INTERVAL_SEC"`
	UndoDepth             int    `env:"PROSESSPORTAL_EDITING_UNDO_DEPTH"`
	LogLevel              string `env:"PROSESSPORTAL_EDITING_LOG_LEVEL"`
	LogPretty             bool   `env:"PROSESSPORTAL_EDITING_LOG_PRETTY"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "editing.db")
	}
	if cfg.CleanupIntervalSec <= 0 {
		cfg.CleanupIntervalSec = 60
	}
	return cfg
}

// Server hosts the editing HTTP API and its maintenance sweep.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlitestore.Store
	svc        *service.Service
	sweepEvery time.Duration
	log        zerolog.Logger
}

// New creates a configured editing server listening on the provided port.
// Port 0 picks a free port; the HTTP addr env var overrides the port.
func New(port int) (*Server, error) {
	env := loadServerEnv()
	addr := env.HTTPAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", port)
	}
	return NewWithAddr(addr)
}

// NewWithAddr creates a configured editing server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env := loadServerEnv()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	log := logging.New(logging.Config{Level: env.LogLevel, Pretty: env.LogPretty})

	store, err := openEditingStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	svc := service.New(store, service.Config{
		SessionTimeout:        time.Duration(env.SessionTimeoutMin) * time.Minute,
		LockTimeout:           time.Duration(env.LockTimeoutMin) * time.Minute,
		MaxConcurrentSessions: env.MaxConcurrentSessions,
		UndoDepth:             env.UndoDepth,
		AutoSaveInterval:      time.Duration(env.AutoSaveIntervalSec) * time.Second,
	}, log, m)

	router := api.New(svc, log, m, registry, nil).Router()

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:      store,
		svc:        svc,
		sweepEvery: time.Duration(env.CleanupIntervalSec) * time.Second,
		log:        log,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an editing server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server and the expiry sweep until context
// cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.log.Info().Str("addr", s.Addr()).Msg("editing server listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()
	go s.sweepLoop(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sweepLoop periodically expires lapsed sessions. Lazy expiry already keeps
// reads correct; the sweep just reclaims locks and drafts promptly.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.svc.CleanupExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("expired session sweep failed")
			}
		}
	}
}

// Close releases the server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Error().Err(err).Msg("close editing store")
		}
	}
}

func openEditingStore(path string) (*sqlitestore.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlitestore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open editing sqlite store: %w", err)
	}
	return store, nil
}
