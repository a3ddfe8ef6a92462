package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Sessions hands out one Store per browser session, rehydrating from storage
// the first time a session shows up after a restart.
type Sessions struct {
	mu      sync.Mutex
	storage Storage
	stores  map[string]*Store
	log     *zap.Logger
}

func NewSessions(storage Storage, log *zap.Logger) *Sessions {
	return &Sessions{
		storage: storage,
		stores:  make(map[string]*Store),
		log:     log,
	}
}

func (s *Sessions) Get(ctx context.Context, sessionID string) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.stores[sessionID]; ok {
		return store, nil
	}

	store, err := NewStore(ctx, s.storage, sessionID)
	if err != nil {
		return nil, err
	}
	s.stores[sessionID] = store
	s.log.Debug("cart session opened", zap.String("session_id", sessionID))
	return store, nil
}
