package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/storage"
)

const DefaultKey = "sessionId"

// Store hands out the per-installation session identifier. The identifier is created
// once, persisted under a single key and never rewritten.
type Store struct {
	storage storage.Storage
	key     string
	newID   func() string

	mu        sync.Mutex
	ephemeral string
}

func NewStore(st storage.Storage, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{storage: st, key: key, newID: uuid.NewString}
}

// GetOrCreate returns the persisted identifier, creating it on first use. When storage
// cannot be read or written the identifier lives in the Store for the rest of the
// process instead.
func (s *Store) GetOrCreate() string {
	if s.storage == nil {
		return s.fallback(nil)
	}

	existing, ok, err := s.storage.Get(s.key)
	if err != nil {
		return s.fallback(err)
	}
	if ok && existing != "" {
		return existing
	}

	s.mu.Lock()
	cached := s.ephemeral
	s.mu.Unlock()
	if cached != "" {
		return cached
	}

	id := s.newID()
	if err := s.storage.Set(s.key, id); err != nil {
		return s.keep(id, err)
	}

	logger.InfoCF("session", "Created session id", map[string]interface{}{"session_id": id})
	return id
}

// Reset forgets the identifier so the next GetOrCreate mints a new one.
func (s *Store) Reset() error {
	s.mu.Lock()
	s.ephemeral = ""
	s.mu.Unlock()

	if s.storage == nil {
		return nil
	}
	return s.storage.Remove(s.key)
}

func (s *Store) fallback(cause error) string {
	s.mu.Lock()
	cached := s.ephemeral
	s.mu.Unlock()
	if cached != "" {
		return cached
	}
	return s.keep(s.newID(), cause)
}

// keep caches id as the process-lifetime identifier, warning the first time only.
func (s *Store) keep(id string, cause error) string {
	s.mu.Lock()
	if s.ephemeral != "" {
		id = s.ephemeral
		s.mu.Unlock()
		return id
	}
	s.ephemeral = id
	s.mu.Unlock()

	fields := map[string]interface{}{"key": s.key, "session_id": id}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	logger.WarnCF("session", "Session id not persisted, keeping it for this process", fields)
	return id
}
