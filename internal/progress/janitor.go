package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor periodically evicts finished export entries so the tracker does
// not grow without bound in long-running deployments.
type Janitor struct {
	logger    zerolog.Logger
	tracker   *Tracker
	schedule  string
	retention time.Duration

	cron *cron.Cron
}

// NewJanitor creates a janitor that sweeps the tracker on the given cron
// schedule. An empty schedule disables sweeping.
func NewJanitor(logger zerolog.Logger, tracker *Tracker, schedule string, retention time.Duration) *Janitor {
	return &Janitor{
		logger:    logger,
		tracker:   tracker,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start schedules the sweep job. The job is stopped when the given context
// is canceled.
func (j *Janitor) Start(ctx context.Context) error {
	if j.schedule == "" {
		j.logger.Info().Msg("progress janitor is disabled")
		return nil
	}

	_, err := cron.ParseStandard(j.schedule)
	if err != nil {
		return errors.Wrapf(err, "invalid janitor schedule %q", j.schedule)
	}

	_, err = j.cron.AddFunc(j.schedule, j.sweep)
	if err != nil {
		return errors.Wrap(err, "failed to schedule progress sweep")
	}

	j.cron.Start()

	j.logger.Info().Str("schedule", j.schedule).Dur("retention", j.retention).Msg("progress janitor has been started")

	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()

		j.logger.Info().Msg("progress janitor has been stopped")
	}()

	return nil
}

func (j *Janitor) sweep() {
	evicted := j.tracker.EvictStale(j.retention)
	if evicted > 0 {
		j.logger.Debug().Int("evicted", evicted).Msg("stale export progress entries have been evicted")
	}
}
