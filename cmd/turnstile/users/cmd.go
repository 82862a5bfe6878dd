package users

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/andrebq/turnstile/internal/cmdflags"
	"github.com/andrebq/turnstile/internal/service"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage registered users",
		Subcommands: []*cli.Command{
			registerCmd(),
			passwdCmd(),
		},
	}
}

func registerCmd() *cli.Command {
	settings := cmdflags.NewSettings()
	var email string
	return &cli.Command{
		Name:  "register",
		Usage: "Register a new user (password is read from stdin)",
		Flags: append(settings.Flags(false), emailFlag(&email)),
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			cfg, appCtx, log, err := settings.Setup(ctx)
			if err != nil {
				return err
			}
			svc, err := service.Open(appCtx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			id, err := svc.Auth.Register(appCtx, email, password)
			if err != nil {
				return err
			}
			log.Info().Int64("user", id.ID).Msg("User created")
			return nil
		},
	}
}

func passwdCmd() *cli.Command {
	settings := cmdflags.NewSettings()
	var email string
	return &cli.Command{
		Name:  "passwd",
		Usage: "Change the password of a user, signing out every session (password is read from stdin)",
		Flags: append(settings.Flags(false), emailFlag(&email)),
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			cfg, appCtx, _, err := settings.Setup(ctx)
			if err != nil {
				return err
			}
			svc, err := service.Open(appCtx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()
			u, err := svc.Users.FindByEmail(appCtx, email)
			if err != nil {
				return err
			}
			_, err = svc.Auth.ChangePassword(appCtx, u.ID, password)
			return err
		},
	}
}

func emailFlag(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "email",
		Aliases:     []string{"e"},
		Usage:       "Email of the user",
		Destination: out,
		Required:    true,
	}
}

func readPassword(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if sc.Err() != nil {
			return "", sc.Err()
		}
		return "", errors.New("missing password from stdin")
	}
	password := strings.TrimSpace(sc.Text())
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}
