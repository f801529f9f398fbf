package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

type profileRepository struct {
	db *sqlx.DB
}

var _ auth.ProfileRepository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetProfile(ctx context.Context, id string) (auth.Profile, error) {
	const q = `SELECT id, name, email, role, created_at, updated_at FROM profiles WHERE id = $1`

	var profile auth.Profile
	if err := repo.db.GetContext(ctx, &profile, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return auth.Profile{}, auth.ErrProfileNotFound
		}
		return auth.Profile{}, errors.Wrap(err, "selecting profile")
	}
	return profile, nil
}
