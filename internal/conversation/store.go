package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"askbridge/internal/models"
)

type entry struct {
	seq       uint64 // creation order, breaks updatedAt ties in purgeExpired
	history   []models.ChatMessage
	updatedAt time.Time
}

// Store keeps conversation histories in memory. It is safe for concurrent use.
//
// Operations are individually atomic; nothing is locked across calls, so two
// requests on the same id may interleave between GetOrCreate and Append.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq uint64
	now     func() time.Time
	newID   func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns a copy of the conversation stored under id, creating an
// empty one when id is blank or unknown.
func (s *Store) GetOrCreate(id string) models.Conversation {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id == "" {
		id = s.newID()
	}
	e, ok := s.entries[id]
	if !ok {
		e = &entry{seq: s.nextSeq, updatedAt: now}
		s.nextSeq++
		s.entries[id] = e
	} else {
		e.updatedAt = now
	}
	return models.Conversation{
		ID:        id,
		History:   models.CloneMessages(e.history),
		UpdatedAt: e.updatedAt,
	}
}

// Append adds msgs to the end of the history in call order.
func (s *Store) Append(id string, msgs ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return &models.UnknownConversationError{ID: id}
	}
	if len(msgs) > 0 {
		history := make([]models.ChatMessage, 0, len(e.history)+len(msgs))
		history = append(history, e.history...)
		history = append(history, msgs...)
		e.history = history
	}
	e.updatedAt = s.now()
	return nil
}

// Trim keeps only the newest max messages.
func (s *Store) Trim(id string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return &models.UnknownConversationError{ID: id}
	}
	if max < 0 {
		max = 0
	}
	if len(e.history) > max {
		e.history = models.CloneMessages(e.history[len(e.history)-max:])
	}
	e.updatedAt = s.now()
	return nil
}

// Touch refreshes the activity timestamp without changing history.
func (s *Store) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return &models.UnknownConversationError{ID: id}
	}
	e.updatedAt = s.now()
	return nil
}

// PurgeExpired deletes conversations idle for longer than ttl and reports how
// many were removed. The most recently updated conversation is always kept,
// however old, so a quiet server never loses its only active chat.
func (s *Store) PurgeExpired(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latestID string
		latest   *entry
	)
	for id, e := range s.entries {
		if latest == nil || e.updatedAt.After(latest.updatedAt) ||
			(e.updatedAt.Equal(latest.updatedAt) && e.seq < latest.seq) {
			latestID, latest = id, e
		}
	}

	now := s.now()
	deleted := 0
	for id, e := range s.entries {
		if id == latestID {
			continue
		}
		if now.Sub(e.updatedAt) > ttl {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted
}

// Len reports the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
