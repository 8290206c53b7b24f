package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/ledger"
)

const (
	defaultPollInterval = 60 * time.Second
	maxBackoff          = 15 * time.Minute
)

// StartPoller launches a background goroutine that refreshes the SII
// call-count diagnostics at a fixed cadence. Consecutive failures back the
// cadence off exponentially so a down backend is not hammered; the first
// success restores the configured interval. It returns immediately.
func StartPoller(ctx context.Context, store *ledger.Store, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if err := store.RefreshLlamadas(ctx); err != nil {
				failures++
				log.Warn().Err(err).Int("failures", failures).Msg("llamadas poll failed")
			} else {
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

// calculateBackoff doubles the base interval per consecutive failure,
// capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
