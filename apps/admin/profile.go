package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/gate"
)

type profileReport struct {
	Identity *auth.Identity `json:"identity"`
	Profile  *auth.Profile  `json:"profile"`
	Home     string         `json:"home"`
	Location string         `json:"location,omitempty"`
}

// profile signs in, prints what the web app would show the user, then signs out.
func (cli *commandLine) profile(email, pwd string) error {
	creds := auth.Credentials{Email: email, Password: pwd}
	if err := creds.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	return cli.withStore(func(ctx context.Context, store *auth.Store) error {
		if err := store.SignIn(ctx, creds.Email, creds.Password); err != nil {
			return errors.New(auth.UserMessage(err))
		}
		defer func() { _ = store.SignOut(context.WithoutCancel(ctx)) }()

		st := store.AwaitSettled(ctx)
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "waiting for the profile")
		}
		d := gate.RoleHome(st)
		return printJSON(cli.out, profileReport{
			Identity: st.Identity,
			Profile:  st.Profile,
			Home:     d.Kind.String(),
			Location: d.Location,
		})
	})
}
