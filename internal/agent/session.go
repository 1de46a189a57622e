package agent

import (
	"sync"
	"time"

	"relaybot/internal/domain"
)

// DefaultIdleTimeout is how long a session may sit idle before its
// transcript is discarded.
const DefaultIdleTimeout = 30 * time.Minute

// SessionStore keeps per-conversation transcripts in memory. A record that
// has been idle longer than the timeout is replaced with a fresh empty one
// on next access, never merged with stale history. The map itself is
// unbounded; sessions only leave it by idle replacement.
type SessionStore struct {
	mu          sync.Mutex
	records     map[string]*sessionRecord
	idleTimeout time.Duration
}

type sessionRecord struct {
	turns        []domain.Message
	lastActivity time.Time
}

func NewSessionStore(idleTimeout time.Duration) *SessionStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &SessionStore{
		records:     make(map[string]*sessionRecord),
		idleTimeout: idleTimeout,
	}
}

// History returns a copy of the transcript for the key, creating a fresh
// empty record when the key is unknown or expired. The activity stamp is
// refreshed on every call, hit or miss.
func (s *SessionStore) History(key string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(key)
	turns := make([]domain.Message, len(rec.turns))
	copy(turns, rec.turns)
	return turns
}

// Append adds turns to the key's transcript, reviving or resetting the
// record under the same rules as History.
func (s *SessionStore) Append(key string, turns ...domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(key)
	rec.turns = append(rec.turns, turns...)
}

// Len reports the number of live session records.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *SessionStore) getOrCreateLocked(key string) *sessionRecord {
	now := time.Now()
	rec, ok := s.records[key]
	if !ok || now.Sub(rec.lastActivity) > s.idleTimeout {
		rec = &sessionRecord{}
		s.records[key] = rec
	}
	rec.lastActivity = now
	return rec
}
