package cmdflags

import (
	"context"

	"github.com/andrebq/turnstile/internal/config"
	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Setup resolves the configuration and returns a context carrying the
// process logger built from it.
func (s *Settings) Setup(ctx *cli.Context) (config.Config, context.Context, zerolog.Logger, error) {
	cfg, err := s.Resolve(ctx)
	if err != nil {
		return config.Config{}, nil, zerolog.Nop(), err
	}
	log, err := logutil.New(ctx.App.ErrWriter, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return config.Config{}, nil, zerolog.Nop(), err
	}
	return cfg, logutil.WithLogger(ctx.Context, log), log, nil
}
