package chatgpt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Cooldown is the process-wide access-denied gate. When the site serves a
// block page instead of the chat page, the bridge disables itself for a
// fixed window before re-attempting. The flag is shared by every client
// bound to the same runtime.
type Cooldown struct {
	period   time.Duration
	disabled atomic.Bool
	logger   zerolog.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCooldown creates a cooldown gate with the given window.
func NewCooldown(period time.Duration, logger zerolog.Logger) *Cooldown {
	return &Cooldown{
		period: period,
		logger: logger.With().Str("component", "cooldown").Logger(),
		sleep:  sleepCtx,
	}
}

// Disabled reports whether the bridge is currently in a cooldown window.
func (c *Cooldown) Disabled() bool {
	return c.disabled.Load()
}

// Trip enters the cooldown window: sets the disabled flag, waits out the
// period, and clears the flag. Returns early if ctx is cancelled, leaving
// the flag cleared.
func (c *Cooldown) Trip(ctx context.Context) error {
	c.disabled.Store(true)
	defer c.disabled.Store(false)

	c.logger.Error().Dur("period", c.period).Msg("Access denied, self-disabling")
	if err := c.sleep(ctx, c.period); err != nil {
		return err
	}
	c.logger.Info().Msg("Cooldown elapsed, re-enabling")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
