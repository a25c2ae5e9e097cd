// Package service orchestrates collaborative editing: session lifecycle,
// commit locking, conflict detection, auto-save, diffing, and version
// promotion, on top of the storage contracts.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
	"github.com/prosessportal/editing/internal/platform/id"
	"github.com/prosessportal/editing/internal/platform/metrics"
)

// Defaults mirror the portal's editing constants.
const (
	DefaultSessionTimeout        = 30 * time.Minute
	DefaultLockTimeout           = 15 * time.Minute
	DefaultMaxConcurrentSessions = 5
	DefaultAutoSaveInterval      = 30 * time.Second
)

// Config tunes the editing service.
type Config struct {
	SessionTimeout        time.Duration
	LockTimeout           time.Duration
	MaxConcurrentSessions int
	UndoDepth             int
	AutoSaveInterval      time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = DefaultMaxConcurrentSessions
	}
	if c.UndoDepth <= 0 {
		c.UndoDepth = domain.DefaultHistoryDepth
	}
	if c.AutoSaveInterval <= 0 {
		c.AutoSaveInterval = DefaultAutoSaveInterval
	}
	return c
}

// Service coordinates all editing operations against one store.
type Service struct {
	store   storage.Store
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() (string, error)

	// Undo history is per live session and deliberately unpersisted.
	mu        sync.Mutex
	histories map[string]*domain.History
}

// Option overrides a Service collaborator, used by tests to pin time and ids.
type Option func(*Service)

// WithClock fixes the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator fixes the id generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates an editing service.
func New(store storage.Store, cfg Config, log zerolog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:     store,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   m,
		now:       time.Now,
		newID:     id.NewID,
		histories: make(map[string]*domain.History),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoSaveInterval reports the cadence clients should auto-save at.
func (s *Service) AutoSaveInterval() time.Duration {
	return s.cfg.AutoSaveInterval
}

// loadSession fetches a session, lazily expiring it when its inactivity
// window has lapsed. An expired or otherwise terminal session yields a
// domain error.
func (s *Service) loadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionNotFound,
				"edit session not found", map[string]string{"sessionId": sessionID})
		}
		return domain.Session{}, err
	}

	now := s.now().UTC()
	if session.ExpiredBy(now, s.cfg.SessionTimeout) {
		if err := s.expireSession(ctx, &session, now); err != nil {
			return domain.Session{}, err
		}
	}

	switch session.Status {
	case domain.SessionStatusExpired:
		return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionExpired,
			"edit session expired", map[string]string{"sessionId": sessionID})
	case domain.SessionStatusCompleted, domain.SessionStatusCancelled:
		return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionClosed,
			"edit session is closed", map[string]string{
				"sessionId": sessionID,
				"status":    session.Status.String(),
			})
	}
	return session, nil
}

// loadOwnedSession is loadSession plus an ownership check.
func (s *Service) loadOwnedSession(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, apperrors.New(apperrors.CodeUserRequired, "user id is required")
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.UserID != userID {
		return domain.Session{}, apperrors.WithMetadata(apperrors.CodeSessionNotOwned,
			"edit session belongs to another user", map[string]string{
				"sessionId": sessionID,
				"ownerId":   session.UserID,
			})
	}
	return session, nil
}

// expireSession transitions a lapsed session to Expired and tears down its
// working state: lock, draft, and undo history.
func (s *Service) expireSession(ctx context.Context, session *domain.Session, now time.Time) error {
	if err := session.Transition(domain.SessionStatusExpired, now); err != nil {
		return err
	}
	if err := s.store.PutSession(ctx, *session); err != nil {
		return err
	}
	if err := s.teardownSession(ctx, *session); err != nil {
		return err
	}
	s.metrics.SessionsExpired.Inc()
	s.log.Info().
		Str("session_id", session.ID).
		Str("process_id", session.ProcessID).
		Msg("edit session expired")
	return nil
}

// teardownSession releases the working state of a session that left the
// live set. The session row itself is kept for history.
func (s *Service) teardownSession(ctx context.Context, session domain.Session) error {
	if err := s.store.ReleaseLock(ctx, session.ProcessID, session.ID); err != nil {
		return err
	}
	if err := s.store.DeleteDraft(ctx, session.ID); err != nil {
		return err
	}
	s.dropHistory(session.ID)
	return nil
}

func (s *Service) historyFor(sessionID string) *domain.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.histories[sessionID]
	if !ok {
		history = domain.NewHistory(s.cfg.UndoDepth)
		s.histories[sessionID] = history
	}
	return history
}

func (s *Service) dropHistory(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
}

// baselineContent loads the content a session's draft was seeded from.
// Unversioned processes have an empty baseline.
func (s *Service) baselineContent(ctx context.Context, session domain.Session) (domain.DocumentContent, error) {
	if session.BaselineVersionID == "" {
		return domain.DocumentContent{}, nil
	}
	version, err := s.store.GetVersion(ctx, session.ProcessID, session.BaselineVersionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.DocumentContent{}, nil
		}
		return domain.DocumentContent{}, err
	}
	return version.Content, nil
}
