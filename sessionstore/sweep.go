package sessionstore

import (
	"context"
	"time"

	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/benbjohnson/clock"
)

// Sweep calls DeleteExpired every interval until ctx is done. Failures are
// logged and retried on the next tick, correctness never depends on the
// sweep because Load checks the expiry.
func Sweep(ctx context.Context, s Store, clk clock.Clock, every time.Duration) {
	log := logutil.GetOrDefault(ctx).With().Str("component", "session-sweeper").Logger()
	ticker := clk.Ticker(every)
	defer ticker.Stop()
	log.Info().Dur("interval", every).Msg("Starting expired session sweeper")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx, clk.Now())
			if err != nil {
				log.Error().Err(err).Msg("Unable to delete expired sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("Expired sessions removed")
			}
		}
	}
}
