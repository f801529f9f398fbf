package inmemdb

import (
	"context"

	"github.com/trezcool/academia/core/auth"
)

type profileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) auth.ProfileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(_ context.Context, id string) (auth.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return *p, nil
	}
	return auth.Profile{}, auth.ErrProfileNotFound
}
