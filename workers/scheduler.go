package workers

import (
	"context"
	"fmt"
	"time"

	"hunter-fitness/config"
	"hunter-fitness/logger"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs the daily jobs on UTC wall-clock times.
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler registers the daily reset and, when archiver is non-nil, the history
// archive job. Jobs get ctx so shutdown cancels in-flight work.
func NewScheduler(ctx context.Context, cfg *config.Config, reset *DailyReset, archiver *HistoryArchiver) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if cfg.DailyResetEnabled && reset != nil {
		h, m, err := config.ParseClock(cfg.DailyResetAt)
		if err != nil {
			return nil, err
		}
		_, err = sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0))),
			gocron.NewTask(func() {
				if _, err := reset.Run(ctx); err != nil {
					logger.Error().Err(err).Msg("❌ [Scheduler] daily reset failed")
				}
			}),
			gocron.WithName("daily-reset"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("schedule daily reset: %w", err)
		}
	}

	if cfg.ArchiveEnabled && archiver != nil {
		h, m, err := config.ParseClock(cfg.ArchiveAt)
		if err != nil {
			return nil, err
		}
		_, err = sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0))),
			gocron.NewTask(func() {
				if _, err := archiver.ArchiveYesterday(ctx); err != nil {
					logger.Error().Err(err).Msg("❌ [Scheduler] history archive failed")
				}
			}),
			gocron.WithName("history-archive"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("schedule history archive: %w", err)
		}
	}

	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	logger.Info().Int("jobs", len(s.sched.Jobs())).Msg("⏰ [Scheduler] started")
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
