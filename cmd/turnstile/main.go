package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/turnstile/cmd/turnstile/serve"
	"github.com/andrebq/turnstile/cmd/turnstile/sessions"
	"github.com/andrebq/turnstile/cmd/turnstile/users"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "turnstile",
		Usage: "Email and password sign in backed by server side sessions",
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			sessions.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
