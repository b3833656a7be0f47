package session

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Store keeps rendered pages per session for a bounded time. Sessions are
// inserted whole and removed whole; nothing edits a stored session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now; tests use it to age sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entity.Session),
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores pages under a fresh id and returns it. The page list is copied;
// the page bytes themselves must not be modified by the caller afterwards.
func (s *Store) Create(pages [][]byte, fileName string) string {
	owned := make([][]byte, len(pages))
	copy(owned, pages)

	sess := &entity.Session{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Pages:     owned,
		PageCount: len(owned),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session.created",
		"session_id", sess.ID,
		"file_name", fileName,
		"page_count", sess.PageCount,
	)
	return sess.ID
}

// Page returns the PNG bytes of a 1-based page. The returned slice is shared; treat it as read-only.
func (s *Store) Page(id string, pageNumber int) ([]byte, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if pageNumber < 1 || pageNumber > sess.PageCount {
		s.logger.Warn("session.page_out_of_range", "session_id", id, "page", pageNumber, "page_count", sess.PageCount)
		return nil, fmt.Errorf("page %d of %d: %w", pageNumber, sess.PageCount, common.ErrPageOutOfRange)
	}
	return sess.Pages[pageNumber-1], nil
}

// PageBase64 is Page encoded with standard base64, for model request bodies.
func (s *Store) PageBase64(id string, pageNumber int) (string, error) {
	b, err := s.Page(id, pageNumber)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Info describes a live session.
func (s *Store) Info(id string) (entity.SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return entity.SessionInfo{}, err
	}
	return s.info(sess), nil
}

// List describes every live session, oldest first.
func (s *Store) List() []entity.SessionInfo {
	now := s.now()

	s.mu.RLock()
	out := make([]entity.SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !s.expired(sess, now) {
			out = append(out, s.info(sess))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b entity.SessionInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// Len counts stored sessions, including expired ones the reaper has not removed yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and reports how many it removed. Ids are
// snapshotted first; each removal then takes the write lock on its own.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.RLock()
	var candidates []string
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		if s.remove(id, now) {
			removed++
			s.logger.Info("session.expired", "session_id", id)
		}
	}
	if removed > 0 {
		s.logger.Debug("session.sweep", "removed", removed, "remaining", s.Len())
	}
	return removed
}

// Run sweeps on the configured interval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session.reaper_started", "ttl", s.ttl.String(), "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session.reaper_stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) remove(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !s.expired(sess, now) {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Store) lookup(id string) (*entity.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(sess, s.now()) {
		s.logger.Warn("session.not_found", "session_id", id)
		return nil, fmt.Errorf("session %q: %w", id, common.ErrSessionNotFound)
	}
	return sess, nil
}

func (s *Store) expired(sess *entity.Session, now time.Time) bool {
	return now.Sub(sess.CreatedAt) >= s.ttl
}

func (s *Store) info(sess *entity.Session) entity.SessionInfo {
	return entity.SessionInfo{
		SessionID: sess.ID,
		FileName:  sess.FileName,
		PageCount: sess.PageCount,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.CreatedAt.Add(s.ttl),
	}
}
