// Package inmemstore keeps browser sessions in process memory.
package inmemstore

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core/auth"
)

type sessionRepository struct {
	mutex    sync.RWMutex
	sessions map[string]auth.Session
}

func NewSessionRepository() auth.SessionRepository {
	return &sessionRepository{sessions: make(map[string]auth.Session)}
}

func (repo *sessionRepository) LoadSession(_ context.Context, key string) (auth.Session, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if sess, ok := repo.sessions[key]; ok {
		return sess, nil
	}
	return auth.Session{}, auth.ErrSessionNotFound
}

func (repo *sessionRepository) SaveSession(_ context.Context, key string, sess auth.Session) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	repo.sessions[key] = sess
	return nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, key string) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()
	delete(repo.sessions, key)
	return nil
}
