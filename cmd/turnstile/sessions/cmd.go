package sessions

import (
	"fmt"

	"github.com/andrebq/turnstile/internal/cmdflags"
	"github.com/andrebq/turnstile/internal/service"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Maintenance of stored sessions",
		Subcommands: []*cli.Command{
			sweepCmd(),
		},
	}
}

func sweepCmd() *cli.Command {
	settings := cmdflags.NewSettings()
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove every expired session once and print how many were removed",
		Flags: settings.Flags(false),
		Action: func(ctx *cli.Context) error {
			cfg, appCtx, _, err := settings.Setup(ctx)
			if err != nil {
				return err
			}
			svc, err := service.Open(appCtx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			n, err := svc.Sessions.DeleteExpired(appCtx, svc.Clock.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, n)
			return err
		},
	}
}
