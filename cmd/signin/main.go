package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-signin/internal/config"
)

const usage = `usage: signin <command> [flags]

commands:
  login    -u USER [-p PASS]   sign in (password from -p, SIGNIN_PASSWORD or stdin)
  logout                       revoke and forget the current credential
  refresh                      refresh the access token
  status                       print the session state
  whoami                       print the signed-in user's profile
  token                        print the current token details
  serve                        run the local sign-in API
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := dispatch(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "signin: %s\n", err)
		os.Exit(1)
	}
}

func dispatch(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if args[0] == "serve" {
		return serve(cfg)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	run := cmd(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return run(ctx, a, stdin, stdout)
}
