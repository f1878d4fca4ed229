package history

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the per-session record bound used when none is
// configured.
const DefaultCapacity = 50

// janitorInterval is how often idle sessions are checked when a TTL is
// configured.
const janitorInterval = 10 * time.Minute

// SessionKey derives the opaque journal partition key from a caller's
// credential. The derivation is deterministic, non-reversible and produces
// a fixed-length key; the credential itself is never stored.
func SessionKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:10])
}

// session is one journal plus the bookkeeping the janitor needs.
type session struct {
	records    []*ActionRecord // most-recent-first
	lastAccess time.Time
}

// Store is the process-wide action journal, keyed by session.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	capacity int
	ttl      time.Duration
	logger   *slog.Logger

	janitorTicker *time.Ticker
	janitorDone   chan struct{}
	closeOnce     sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the per-session record bound.
func WithCapacity(capacity int) Option {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithSessionTTL enables the idle-session janitor. Sessions not touched
// for longer than ttl are dropped entirely, journal included. A zero ttl
// leaves eviction disabled.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store. It is intended to be created once at process start
// and shared; sessions are populated lazily on first Add.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		capacity: DefaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl > 0 {
		s.janitorTicker = time.NewTicker(janitorInterval)
		s.janitorDone = make(chan struct{})
		go s.evictIdleSessions()
	}

	return s
}

// Close stops the janitor goroutine, if one is running.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.janitorTicker != nil {
			s.janitorTicker.Stop()
			close(s.janitorDone)
		}
	})
}

// Add appends a record at the front of the session's journal, evicting the
// oldest entry once capacity is exceeded. Record contents are not
// validated; Add always succeeds.
func (s *Store) Add(sessionKey string, record *ActionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey]
	if !ok {
		sess = &session{}
		s.sessions[sessionKey] = sess
	}

	sess.records = append([]*ActionRecord{record}, sess.records...)
	if len(sess.records) > s.capacity {
		sess.records = sess.records[:s.capacity]
	}
	sess.lastAccess = time.Now()
}

// GetLast returns a copy of the most recent undo-eligible record, or nil
// if the session is unknown or every record has been rolled back.
func (s *Store) GetLast(sessionKey string) *ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey]
	if !ok {
		return nil
	}
	for _, record := range sess.records {
		if record.undoable() {
			clone := *record
			return &clone
		}
	}
	return nil
}

// MarkRolledBack flips RolledBack on the matching record. It is
// idempotent and silently a no-op when the id is absent.
func (s *Store) MarkRolledBack(sessionKey, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey]
	if !ok {
		return
	}
	for _, record := range sess.records {
		if record.ID == recordID {
			record.RolledBack = true
			return
		}
	}
}

// History returns copies of up to limit most-recent records, rolled-back
// ones included. Intended for inspection and audit only.
func (s *Store) History(sessionKey string, limit int) []ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey]
	if !ok {
		return nil
	}

	n := len(sess.records)
	if limit > 0 && limit < n {
		n = limit
	}

	records := make([]ActionRecord, 0, n)
	for _, record := range sess.records[:n] {
		records = append(records, *record)
	}
	return records
}

// Sessions returns the number of live sessions.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// evictIdleSessions drops sessions idle longer than the configured TTL.
func (s *Store) evictIdleSessions() {
	for {
		select {
		case <-s.janitorDone:
			return
		case <-s.janitorTicker.C:
			s.evictOnce(time.Now())
		}
	}
}

func (s *Store) evictOnce(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, sess := range s.sessions {
		if now.Sub(sess.lastAccess) > s.ttl {
			delete(s.sessions, key)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted idle sessions",
			slog.Int("evicted", evicted),
			slog.Int("remaining", len(s.sessions)))
	}
}
