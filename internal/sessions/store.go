// Package sessions owns conversation state: an in-memory session store
// keyed by (channel, sender) with idle archival, and the per-sender facts
// store that feeds prompt assembly.
package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projectuberman28-hub/openclaw-sub001/pkg/models"
)

// DefaultIdleThreshold is how long a session may sit without activity
// before the archiver retires it.
const DefaultIdleThreshold = 4 * time.Hour

// maxMessagesPerSession bounds per-session memory. When exceeded the
// oldest messages are trimmed.
const maxMessagesPerSession = 1000

// Store keeps active sessions in memory, one per (channel, sender) pair.
// An archived session is never returned or mutated again; the next
// message from that pair starts a fresh session.
type Store struct {
	logger        *slog.Logger
	idleThreshold time.Duration
	now           func() time.Time

	mu       sync.Mutex
	active   map[string]*models.Session
	archived []*models.Session
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleThreshold overrides the archival threshold.
func WithIdleThreshold(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.idleThreshold = d
		}
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger.With("component", "sessions") }
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger:        slog.Default().With("component", "sessions"),
		idleThreshold: DefaultIdleThreshold,
		now:           time.Now,
		active:        make(map[string]*models.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns the live session for the pair, creating one on first
// contact or after the previous session went idle past the threshold.
// The returned session is exclusive to the calling turn until Release.
func (s *Store) Acquire(channel models.ChannelType, sender, agentID string) *models.Session {
	key := string(channel) + ":" + sender
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.active[key]; ok {
		if now.Sub(session.LastActivity) <= s.idleThreshold {
			return session
		}
		s.archiveLocked(key, session)
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Channel:      channel,
		Sender:       sender,
		StartedAt:    now,
		LastActivity: now,
	}
	s.active[key] = session
	s.logger.Debug("session started", "session", session.ID, "channel", channel, "sender", sender)
	return session
}

// Release trims an oversized transcript after a turn. The engine owns
// the session between Acquire and Release; the store only sees it at the
// boundaries.
func (s *Store) Release(session *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(session.Messages); n > maxMessagesPerSession {
		session.Messages = append([]models.Message(nil), session.Messages[n-maxMessagesPerSession:]...)
	}
}

// Get returns the live session for the pair without creating one.
func (s *Store) Get(channel models.ChannelType, sender string) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.active[string(channel)+":"+sender]
	return session, ok
}

// ArchiveIdle retires every session idle past the threshold and returns
// the sessions archived by this pass.
func (s *Store) ArchiveIdle() []*models.Session {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for key, session := range s.active {
		if now.Sub(session.LastActivity) > s.idleThreshold {
			s.archiveLocked(key, session)
			out = append(out, session)
		}
	}
	return out
}

// Active returns the number of live sessions.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Archived returns a snapshot of retired sessions, oldest first.
func (s *Store) Archived() []*models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Session(nil), s.archived...)
}

func (s *Store) archiveLocked(key string, session *models.Session) {
	session.Archived = true
	delete(s.active, key)
	s.archived = append(s.archived, session)
	s.logger.Debug("session archived", "session", session.ID, "idle_since", session.LastActivity)
}
