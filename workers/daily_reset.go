package workers

import (
	"context"
	"sync/atomic"

	"hunter-fitness/logger"
	"hunter-fitness/services"

	"golang.org/x/sync/errgroup"
)

// DailyReset decays missed streaks and hands every hunter the day's quests.
type DailyReset struct {
	Hunters  *services.HunterService
	Quests   *services.QuestService
	Clock    services.Clock
	Parallel int
}

type DailyResetReport struct {
	Date         string `json:"date"`
	StreaksReset int64  `json:"streaks_reset"`
	Hunters      int    `json:"hunters"`
	Failed       int64  `json:"failed"`
}

func (w *DailyReset) Run(ctx context.Context) (DailyResetReport, error) {
	now := w.Clock.Now()
	report := DailyResetReport{Date: now.Format(services.DateLayout)}

	reset, err := w.Hunters.DecayStreaks(ctx, now)
	if err != nil {
		return report, err
	}
	report.StreaksReset = reset

	ids, err := w.Hunters.HunterIDs(ctx)
	if err != nil {
		return report, err
	}
	report.Hunters = len(ids)

	// Hunters are independent; one failure must not stop the others.
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, w.Parallel))
	for _, id := range ids {
		g.Go(func() error {
			if _, err := w.Quests.GenerateDailyQuests(gctx, id, report.Date, false); err != nil {
				failed.Add(1)
				logger.Error().Err(err).Str("hunter_id", id).Msg("❌ [DAILY_RESET] quest generation failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Failed = failed.Load()

	logger.Info().
		Str("date", report.Date).
		Int("hunters", report.Hunters).
		Int64("streaks_reset", report.StreaksReset).
		Int64("failed", report.Failed).
		Msg("🌅 [DAILY_RESET] done")
	return report, nil
}
