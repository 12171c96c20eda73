package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenRetention is how long expired video tokens are kept before the purge job deletes them.
const TokenRetention = 7 * 24 * time.Hour

const jobTimeout = 4 * time.Minute

// EventMarker persists the past status of finished events.
type EventMarker interface {
	MarkPast(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger deletes expired video access tokens.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// Schedules are cron specs in the standard five-field format.
type Schedules struct {
	MarkPastEvents string
	PurgeTokens    string
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	events EventMarker
	tokens TokenPurger
	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler registers both jobs. An invalid spec is an error.
func NewScheduler(events EventMarker, tokens TokenPurger, specs Schedules, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		events: events,
		tokens: tokens,
		now:    time.Now,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(specs.MarkPastEvents, s.job("mark_past_events", s.MarkPastEvents)); err != nil {
		return nil, fmt.Errorf("schedule mark past events %q: %w", specs.MarkPastEvents, err)
	}
	if _, err := s.cron.AddFunc(specs.PurgeTokens, s.job("purge_video_tokens", s.PurgeTokens)); err != nil {
		return nil, fmt.Errorf("schedule purge video tokens %q: %w", specs.PurgeTokens, err)
	}
	return s, nil
}

func (s *Scheduler) job(name string, run func(context.Context) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := run(ctx)
		if err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job done", zap.String("job", name), zap.Int64("rows", n))
	}
}

// MarkPastEvents flips finished upcoming events to past.
func (s *Scheduler) MarkPastEvents(ctx context.Context) (int64, error) {
	return s.events.MarkPast(ctx, s.now())
}

// PurgeTokens deletes tokens that expired more than TokenRetention ago.
func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpiredTokens(ctx, s.now().Add(-TokenRetention))
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
