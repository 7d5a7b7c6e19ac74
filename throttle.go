package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ThrottleStore remembers when a session last performed a throttled action
type ThrottleStore interface {
	LastAction(ctx context.Context, key string) (time.Time, bool, error)
	RecordAction(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

// CommentThrottle limits how often a session may comment.
//
// The check and the record are two separate store calls, two concurrent
// requests from the same session can both pass. That matches the cookie
// session behavior this replaces and is accepted.
type CommentThrottle struct {
	store    ThrottleStore
	cooldown time.Duration
	clock    Clock
	logger   Logger
}

type ThrottleOption func(*CommentThrottle)

func WithThrottleClock(c Clock) ThrottleOption {
	return func(t *CommentThrottle) {
		t.clock = normalizeClock(c)
	}
}

func WithThrottleLogger(l Logger) ThrottleOption {
	return func(t *CommentThrottle) {
		t.logger = normalizeLogger(l)
	}
}

// NewCommentThrottle creates a throttle using the cooldown from cfg
func NewCommentThrottle(store ThrottleStore, cfg Config, opts ...ThrottleOption) *CommentThrottle {
	if store == nil {
		store = NewMemoryThrottleStore()
	}

	cooldown := DefaultCommentCooldown
	if cfg != nil && cfg.GetCommentCooldown() > 0 {
		cooldown = cfg.GetCommentCooldown()
	}

	t := &CommentThrottle{
		store:    store,
		cooldown: cooldown,
		clock:    SystemClock{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Cooldown is the minimum gap between two comments
func (t *CommentThrottle) Cooldown() time.Duration {
	return t.cooldown
}

// Allow rejects with ErrCommentThrottled when the session commented less
// than the cooldown ago, otherwise it records the attempt and returns nil.
// A rejected attempt does not reset the window.
func (t *CommentThrottle) Allow(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return goerrors.New("session id is required", goerrors.CategoryBadInput)
	}

	now := t.clock.Now()

	last, ok, err := t.store.LastAction(ctx, sessionID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read comment throttle")
	}

	if ok && now.Sub(last) < t.cooldown {
		t.logger.Debug("comment throttled for session %s, last comment %s ago", sessionID, now.Sub(last))
		return ErrCommentThrottled
	}

	if err := t.store.RecordAction(ctx, sessionID, now, t.cooldown); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record comment throttle")
	}

	return nil
}

// MemoryThrottleStore keeps timestamps in process memory. Entries expire
// after the ttl given when they were recorded and are swept on later writes.
type MemoryThrottleStore struct {
	mu        sync.Mutex
	entries   map[string]throttleEntry
	nextSweep time.Time
}

type throttleEntry struct {
	at        time.Time
	expiresAt time.Time
}

func (e throttleEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

var _ ThrottleStore = (*MemoryThrottleStore)(nil)

func NewMemoryThrottleStore() *MemoryThrottleStore {
	return &MemoryThrottleStore{entries: map[string]throttleEntry{}}
}

func (s *MemoryThrottleStore) LastAction(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return entry.at, true, nil
}

// RecordAction stores at until at+ttl. A zero ttl keeps the entry until
// it is overwritten.
func (s *MemoryThrottleStore) RecordAction(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := throttleEntry{at: at}
	if ttl > 0 {
		entry.expiresAt = at.Add(ttl)
	}
	s.entries[key] = entry

	if !at.Before(s.nextSweep) {
		s.sweep(at)
		next := at.Add(ttl)
		if ttl <= 0 {
			next = at.Add(DefaultCommentCooldown)
		}
		s.nextSweep = next
	}

	return nil
}

// Len returns the number of entries currently held
func (s *MemoryThrottleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryThrottleStore) sweep(now time.Time) {
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
}
