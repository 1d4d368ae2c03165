package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/api"
)

type loginCmd struct {
	email    string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and store the session" }
func (*loginCmd) Usage() string {
	return `ldash login -email <email> [-password <password>]

Logs in to the backend and stores the session for the other commands.
Without -password, the password is read from the terminal.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email")
	f.StringVar(&c.password, "password", "", "Account password (read from the terminal when empty)")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(stderr, "Error: -email is required.")
		return subcommands.ExitUsageError
	}
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	password, err := secret(c.password, "Password: ")
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	res, err := a.client.Login(ctx, c.email, password)
	return a.saveSession(res, err)
}

type signupCmd struct {
	email    string
	password string
	phone    string
}

func (*signupCmd) Name() string     { return "signup" }
func (*signupCmd) Synopsis() string { return "create an account and store the session" }
func (*signupCmd) Usage() string {
	return `ldash signup -email <email> [-phone <phone>] [-password <password>]

Creates an account and logs in. Without -password, the password and its
confirmation are read from the terminal.
`
}

func (c *signupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email")
	f.StringVar(&c.password, "password", "", "Account password (read from the terminal when empty)")
	f.StringVar(&c.phone, "phone", "", "Phone number")
}

func (c *signupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(stderr, "Error: -email is required.")
		return subcommands.ExitUsageError
	}
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	password, err := secret(c.password, "Password: ")
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	confirm := password
	if c.password == "" {
		if confirm, err = secret("", "Confirm password: "); err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return subcommands.ExitFailure
		}
	}
	res, err := a.client.Signup(ctx, c.email, password, confirm, c.phone)
	return a.saveSession(res, err)
}

func (a *app) saveSession(res api.LoginResult, err error) subcommands.ExitStatus {
	var verr *loandash.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(stderr, "Error:", verr.Message)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if err := a.store.Set(res.Token, res.UserID, res.Email); err != nil {
		fmt.Fprintln(stderr, "Error: cannot save the session:", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Logged in as %s\n", res.Email)
	return subcommands.ExitSuccess
}

// secret returns value, or reads it from the terminal without echo.
func secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// piped input, one line
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line == "" && err != nil {
			return "", fmt.Errorf("no password given")
		}
		return line, nil
	}
	fmt.Fprint(stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("cannot read password: %w", err)
	}
	return string(b), nil
}

type logoutCmd struct{}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "clear the stored session" }
func (*logoutCmd) Usage() string {
	return `ldash logout

Tells the backend and clears the stored session. The local session is
cleared even when the backend cannot be reached.
`
}

func (c *logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if err := a.client.Logout(ctx, a.store.Get().Token); err != nil {
		a.logger.Warn("backend logout failed", zap.Error(err))
	}
	if err := a.store.Clear(); err != nil {
		fmt.Fprintln(stderr, "Error: cannot clear the session:", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, "Logged out.")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string     { return "whoami" }
func (*whoamiCmd) Synopsis() string { return "show the logged in account" }
func (*whoamiCmd) Usage() string {
	return `ldash whoami

Validates the stored session against the backend and prints its account.
An expired session is cleared.
`
}

func (c *whoamiCmd) SetFlags(f *flag.FlagSet) {}

func (c *whoamiCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	g, ok := a.gate(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	id := g.Identity()
	fmt.Fprintf(stdout, "%s (%s)\n", id.Email, id.UserID)
	return subcommands.ExitSuccess
}
