package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// sweepTimeout bounds a single pass over ended auctions.
const sweepTimeout = 30 * time.Second

// ClosedNotifier announces auctions that have ended.
type ClosedNotifier interface {
	NotifyClosed(ctx context.Context, now time.Time) (int, error)
}

// Closer periodically announces ended auctions to their rooms.
type Closer struct {
	notifier ClosedNotifier
	cron     *cron.Cron
	now      func() time.Time
}

// NewCloser creates a Closer that sweeps on the given cron spec
// (for example "@every 30s" or "*/1 * * * *").
func NewCloser(notifier ClosedNotifier, spec string) (*Closer, error) {
	c := &Closer{
		notifier: notifier,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:      time.Now,
	}
	if _, err := c.cron.AddFunc(spec, c.sweep); err != nil {
		return nil, fmt.Errorf("invalid close sweep spec %q: %w", spec, err)
	}
	return c, nil
}

// Run performs one sweep immediately and then starts the schedule.
func (c *Closer) Run() {
	log.Info().Msg("Starting auction closer...")
	c.sweep()
	c.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (c *Closer) Stop() {
	<-c.cron.Stop().Done()
	log.Info().Msg("Stopped auction closer.")
}

// RunOnce announces every auction that has ended by now and returns how
// many were announced.
func (c *Closer) RunOnce(ctx context.Context) (int, error) {
	return c.notifier.NotifyClosed(ctx, c.now())
}

func (c *Closer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := c.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Closer: failed to sweep ended auctions")
		return
	}
	if n > 0 {
		log.Info().Int("announced", n).Msg("Closer: announced ended auctions")
	}
}
