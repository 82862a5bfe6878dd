package serve

import (
	"github.com/andrebq/turnstile/internal/cmdflags"
	"github.com/andrebq/turnstile/internal/httpserver"
	"github.com/andrebq/turnstile/internal/service"
	"github.com/andrebq/turnstile/internal/webapp"
	"github.com/andrebq/turnstile/sessionstore"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	settings := cmdflags.NewSettings()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web application",
		Flags: settings.Flags(true),
		Action: func(ctx *cli.Context) error {
			cfg, appCtx, log, err := settings.Setup(ctx)
			if err != nil {
				return err
			}
			svc, err := service.Open(appCtx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			if cfg.InsecureCookie {
				log.Warn().Msg("Session cookie will be sent over plain http")
			}

			app, err := webapp.New(svc.Manager, svc.Auth, svc.Profiles)
			if err != nil {
				return err
			}
			go sessionstore.Sweep(appCtx, svc.Sessions, svc.Clock, cfg.SweepInterval)

			log.Info().
				Str("session-backend", cfg.SessionBackend).
				Dur("idle-timeout", cfg.IdleTimeout).
				Msg("Serving turnstile")
			return httpserver.Serve(appCtx, cfg.Bind, httpserver.WithLogging(log, app.Handler()))
		},
	}
}
