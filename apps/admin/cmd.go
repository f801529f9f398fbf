package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const defaultSettleTimeout = 10 * time.Second

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// NewStoreFunc returns a Store of its own browser session; release frees it.
type NewStoreFunc func() (store *auth.Store, release func())

type commandLine struct {
	newStore   NewStoreFunc
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
	settle     time.Duration
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME [-role student|teacher] - sign up a new account")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - send a password reset email")
	fmt.Fprintln(cli.out, "  profile -email EMAIL - sign in and print the profile and home page of the account")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", string(auth.RoleStudent), "The user's role: student or teacher.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email.")

	profileCmd := flag.NewFlagSet("profile", flag.ExitOnError)
	profileEmail := profileCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(auth.NewAccount{
			Name:            *addUserName,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            auth.Role(*addUserRole),
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail)
	case "profile":
		if err := profileCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *profileEmail == "" {
			profileCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			profileCmd.Usage()
			return errHelp
		}
		return cli.profile(*profileEmail, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", pkgerrors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// withStore runs fn against a fresh Store, settled, and releases it afterwards.
func (cli *commandLine) withStore(fn func(ctx context.Context, store *auth.Store) error) error {
	store, release := cli.newStore()
	defer func() {
		_ = store.Close()
		if release != nil {
			release()
		}
	}()

	timeout := cli.settle
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store.AwaitSettled(ctx)
	return fn(ctx, store)
}

// validationError turns field errors into a readable error.
func (cli *commandLine) validationError(err error) error {
	flds, ok := core.FieldErrors(err, cli.translator)
	if !ok {
		return err
	}
	names := make([]string, 0, len(flds))
	for name := range flds {
		names = append(names, name)
	}
	sort.Strings(names)

	msg := "invalid input:"
	for _, name := range names {
		msg += fmt.Sprintf("\n  %s: %s", name, flds[name])
	}
	return errors.New(msg)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
