package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/common/metrics"
	"restaurant-receptionist/internal/models"
)

var (
	ErrSessionNotFound = errors.New("SESSION_NOT_FOUND")
	ErrSessionBusy     = errors.New("SESSION_BUSY")
	ErrSessionEnded    = errors.New("SESSION_ENDED")
)

// Snapshotter persists sessions so a restarted process can pick up a call
// where it left off.
type Snapshotter interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id string) (Snapshot, bool, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	IdleTimeout time.Duration
	HistorySize int
}

func DefaultConfig() Config {
	return Config{IdleTimeout: 10 * time.Minute, HistorySize: 4}
}

// Store holds the live sessions of this process.
type Store struct {
	cfg       Config
	snapshots Snapshotter
	logger    logger.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Store)

func WithSnapshotter(s Snapshotter) Option {
	return func(st *Store) { st.snapshots = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

func NewStore(cfg Config, log logger.Logger, opts ...Option) *Store {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	s := &Store{
		cfg:      cfg,
		logger:   log.With(map[string]interface{}{"component": "session-store"}),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the live session id, creating it in the Idle state if
// it does not exist or has gone idle past the timeout. An empty id gets a
// fresh one. New sessions are rehydrated from the snapshotter when one is
// configured.
func (s *Store) GetOrCreate(ctx context.Context, id string, channel models.Channel) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok && !sess.Expired() && sess.idleSince(now) <= s.cfg.IdleTimeout {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		if !sess.Expired() && sess.idleSince(now) <= s.cfg.IdleTimeout {
			return sess
		}
		s.removeLocked(ctx, id, sess, true)
	}

	sess = newSession(id, channel, s.cfg.HistorySize, now)
	if s.snapshots != nil {
		snap, found, err := s.snapshots.Load(ctx, id)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("session snapshot load failed", map[string]interface{}{"sessionId": id})
		case found && now.Sub(snap.LastActivity) <= s.cfg.IdleTimeout:
			sess.restore(snap)
			s.logger.Debug("session rehydrated", map[string]interface{}{"sessionId": id, "history": len(snap.History)})
		}
	}
	s.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Debug("session created", map[string]interface{}{"sessionId": id, "channel": string(channel)})
	return sess
}

// Get returns a live session without creating one.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Expired() {
		return nil, false
	}
	return sess, true
}

// Acquire returns the session with its turn lock held. The release func
// must be called exactly once. Waiting honors ctx; a session that ends
// while waiting yields ErrSessionEnded.
func (s *Store) Acquire(ctx context.Context, id string, channel models.Channel) (*Session, func(), error) {
	sess := s.GetOrCreate(ctx, id, channel)

	select {
	case sess.turn <- struct{}{}:
	case <-sess.done:
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionEnded, sess.ID)
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrSessionBusy, sess.ID, ctx.Err())
	}

	if sess.Expired() {
		<-sess.turn
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionEnded, sess.ID)
	}
	sess.touch(s.now())

	var once sync.Once
	release := func() {
		once.Do(func() { <-sess.turn })
	}
	return sess, release, nil
}

// Touch marks activity on id and persists a snapshot when configured.
// Snapshot failures are logged; the in-memory session stays authoritative.
func (s *Store) Touch(ctx context.Context, id string) error {
	sess, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, sess.snapshot()); err != nil {
			s.logger.WithError(err).Warn("session snapshot save failed", map[string]interface{}{"sessionId": id})
		}
	}
	return nil
}

// Expire ends the session: Done is closed, in-flight turns discard their
// results and the snapshot is deleted.
func (s *Store) Expire(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	s.removeLocked(ctx, id, sess, true)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.logger.Info("session expired", map[string]interface{}{"sessionId": id})
	return true
}

func (s *Store) removeLocked(ctx context.Context, id string, sess *Session, dropSnapshot bool) {
	sess.expire()
	delete(s.sessions, id)
	if dropSnapshot && s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, id); err != nil {
			s.logger.WithError(err).Warn("session snapshot delete failed", map[string]interface{}{"sessionId": id})
		}
	}
}

// Sweep expires every session idle longer than the timeout and reports how
// many it removed. Snapshots are left to their own TTL.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.cfg.IdleTimeout {
			s.removeLocked(ctx, id, sess, false)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	if removed > 0 {
		s.logger.Info("idle sessions swept", map[string]interface{}{"removed": removed, "active": len(s.sessions)})
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown ends every session without touching snapshots, so they survive
// a restart.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.expire()
		delete(s.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
}
