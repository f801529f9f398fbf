package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

func (cli *commandLine) resetPassword(email string) error {
	req := auth.PasswordResetRequest{Email: email}
	if err := req.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	return cli.withStore(func(ctx context.Context, store *auth.Store) error {
		if err := store.ResetPassword(ctx, req.Email); err != nil {
			return errors.New(auth.UserMessage(err))
		}
		fmt.Fprintf(cli.out, "Password reset email sent to %s.\n", req.Email)
		return nil
	})
}
