package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

// addUser signs up an account; the user still has to verify the email.
func (cli *commandLine) addUser(acc auth.NewAccount) error {
	if err := acc.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	return cli.withStore(func(ctx context.Context, store *auth.Store) error {
		if err := store.SignUp(ctx, acc); err != nil {
			return errors.New(auth.UserMessage(err))
		}
		fmt.Fprintf(cli.out, "Registration successful! A verification email was sent to %s.\n", acc.Email)
		return nil
	})
}
