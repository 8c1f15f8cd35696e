package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type runFunc func(ctx context.Context, a *app, stdin io.Reader, stdout io.Writer) error

// commands maps a command name to a constructor that declares its flags.
var commands = map[string]func(fs *flag.FlagSet) runFunc{
	"login":   loginCommand,
	"logout":  simpleCommand(logout),
	"refresh": simpleCommand(refresh),
	"status":  simpleCommand(status),
	"whoami":  simpleCommand(whoami),
	"token":   simpleCommand(token),
}

func simpleCommand(run runFunc) func(*flag.FlagSet) runFunc {
	return func(*flag.FlagSet) runFunc {
		return run
	}
}

func loginCommand(fs *flag.FlagSet) runFunc {
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")

	return func(ctx context.Context, a *app, stdin io.Reader, stdout io.Writer) error {
		if strings.TrimSpace(*username) == "" {
			return errUsage
		}
		pass, err := readPassword(*password, stdin)
		if err != nil {
			return err
		}
		if err := a.model.Submit(ctx, *username, pass); err != nil {
			return errors.New(a.model.ErrorMessage())
		}
		fmt.Fprintf(stdout, "Signed in as %s\n", a.model.Username())
		return nil
	}
}

// readPassword prefers the flag, then SIGNIN_PASSWORD, then the first line of stdin.
func readPassword(flagValue string, stdin io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("SIGNIN_PASSWORD"); env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("[readPassword] %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func logout(ctx context.Context, a *app, _ io.Reader, stdout io.Writer) error {
	if err := a.model.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Signed out")
	return nil
}

func refresh(ctx context.Context, a *app, _ io.Reader, stdout io.Writer) error {
	if err := a.model.RefreshToken(ctx); err != nil {
		return errors.New(a.model.ErrorMessage())
	}
	fmt.Fprintln(stdout, "Token refreshed")
	return nil
}

func status(_ context.Context, a *app, _ io.Reader, stdout io.Writer) error {
	fmt.Fprintln(stdout, a.model.State())
	return nil
}

func whoami(ctx context.Context, a *app, _ io.Reader, stdout io.Writer) error {
	profile, err := a.model.FetchUserProfile(ctx)
	if err != nil {
		return errors.New(a.model.ErrorMessage())
	}
	if profile == nil {
		return errors.New("not signed in")
	}
	return writeJSON(stdout, profile)
}

func token(_ context.Context, a *app, _ io.Reader, stdout io.Writer) error {
	details := a.model.TokenDetails()
	if details == nil {
		fmt.Fprintln(stdout, a.model.Token())
		return nil
	}
	return writeJSON(stdout, details)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
