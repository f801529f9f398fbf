package postgrestrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

type profileRepository struct {
	client *Client
}

func NewProfileRepository(client *Client) auth.ProfileRepository {
	return &profileRepository{client: client}
}

func (repo *profileRepository) GetProfile(ctx context.Context, id string) (auth.Profile, error) {
	var profile auth.Profile
	_, err := repo.client.from(ctx, "profiles").
		Select("*", "", false).
		Eq("id", id).
		Single().
		ExecuteTo(&profile)
	if err != nil {
		if errorCode(err) == codeNoRows {
			return auth.Profile{}, auth.ErrProfileNotFound
		}
		return auth.Profile{}, errors.Wrap(err, "selecting profile")
	}
	return profile, nil
}
