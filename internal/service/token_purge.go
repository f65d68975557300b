package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TokenPurger deletes refresh tokens that expired before cutoff.
type TokenPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunTokenPurge deletes expired refresh tokens every interval until ctx is
// done. Rows are kept for retention after expiry so that recent replays can
// still be traced. A failed pass is logged and retried on the next tick.
func RunTokenPurge(ctx context.Context, p TokenPurger, interval, retention time.Duration, log zerolog.Logger) {
	log = log.With().Str("component", "token-purge").Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			n, err := p.DeleteExpired(ctx, t.UTC().Add(-retention))
			if err != nil {
				log.Error().Err(err).Msg("purge expired refresh tokens failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("purged expired refresh tokens")
			}
		}
	}
}
