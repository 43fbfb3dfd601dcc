package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	raidLevelScaling    = 0.02
	raidFailureShare    = 0.25
	minRaidSuccessRate  = 0.10
	maxRaidSuccessRate  = 0.95
	baseRaidSuccessRate = 0.6
)

type DungeonService struct {
	Store        *Store
	Clock        Clock
	Achievements *AchievementService
}

func NewDungeonService(store *Store, clock Clock, achievements *AchievementService) *DungeonService {
	return &DungeonService{Store: store, Clock: clock, Achievements: achievements}
}

// RaidResult is what finishing a raid did.
type RaidResult struct {
	Raid     *models.DungeonRaid          `json:"raid"`
	Award    *AwardResult                 `json:"award,omitempty"`
	Unlocked []models.AchievementTemplate `json:"unlocked_achievements,omitempty"`
}

// DungeonAvailability is one dungeon as seen by one hunter.
type DungeonAvailability struct {
	Dungeon     models.DungeonTemplate   `json:"dungeon"`
	Exercises   []models.DungeonExercise `json:"exercises"`
	Eligible    bool                     `json:"eligible"`
	AvailableAt *time.Time               `json:"available_at,omitempty"` // set while on cooldown
	SuccessRate float64                  `json:"success_rate"`
}

func meetsDungeonGate(h *models.Hunter, tpl *models.DungeonTemplate) bool {
	return h.Level >= tpl.MinLevel && h.Rank.AtLeast(tpl.MinRank)
}

// RaidXP is the reward for a successful raid finished in actualSeconds:
// round(BaseXP * (1 + level*0.02) * timeBonus + BonusXP), where finishing under the
// estimate earns timeBonus = 1 + 0.5*(est-actual)/est.
func RaidXP(tpl *models.DungeonTemplate, level int, actualSeconds float64) int64 {
	timeBonus := 1.0
	est := float64(tpl.EstimatedMinutes * 60)
	if est > 0 && actualSeconds < est {
		timeBonus = 1 + 0.5*(est-actualSeconds)/est
	}
	return int64(math.Round(float64(tpl.BaseXP)*(1+float64(level)*raidLevelScaling)*timeBonus + float64(tpl.BonusXP)))
}

// FailedRaidXP is a quarter of what success would have paid.
func FailedRaidXP(successXP int64) int64 {
	return int64(math.Round(raidFailureShare * float64(successXP)))
}

func successRate(h *models.Hunter, stats models.Stats, tpl *models.DungeonTemplate) float64 {
	minLevel := float64(max(1, tpl.MinLevel))
	levelAdv := (float64(h.Level) - minLevel) / minLevel
	statAdv := float64(stats.Total()) / (minLevel * 4 * 2.5)
	return clampFloat(baseRaidSuccessRate+0.2*levelAdv+0.2*statAdv, minRaidSuccessRate, maxRaidSuccessRate)
}

func (s *DungeonService) StartRaid(ctx context.Context, hunterID, dungeonID string) (*models.DungeonRaid, error) {
	var out *models.DungeonRaid
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		tpl, err := tx.DungeonTemplate(dungeonID)
		if err != nil {
			return err
		}
		if !tpl.IsActive {
			return notFound(CodeDungeonNotFound, "dungeon %s is closed", dungeonID)
		}
		if !meetsDungeonGate(h, tpl) {
			return ineligible(CodeDungeonLocked, tpl.MinLevel, tpl.MinRank,
				"%s requires level %d and rank %s", tpl.Name, tpl.MinLevel, tpl.MinRank)
		}

		live, err := tx.LiveRaid(h.ID)
		if err != nil {
			return err
		}
		if live != nil {
			return invalidState(CodeRaidAlreadyActive, "a raid is already in progress")
		}

		now := s.Clock.Now()
		last, err := tx.LastRaid(h.ID, tpl.ID)
		if err != nil {
			return err
		}
		if last != nil && last.NextAvailableAt != nil && now.Before(*last.NextAvailableAt) {
			e := invalidState(CodeRaidOnCooldown, "%s is on cooldown until %s", tpl.Name, last.NextAvailableAt.Format(time.RFC3339))
			at := *last.NextAvailableAt
			e.AvailableAt = &at
			return e
		}

		raid := &models.DungeonRaid{
			ID:        uuid.NewString(),
			HunterID:  h.ID,
			DungeonID: tpl.ID,
			Status:    models.RaidStatusStarted,
			StartedAt: now,
		}
		if err := tx.CreateRaid(raid); err != nil {
			return err
		}
		logger.Info().Str("hunter_id", h.ID).Str("dungeon", tpl.Code).Str("raid_id", raid.ID).Msg("🏰 raid started")
		out = raid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRaidProgress records progress (clamped to 0-100). The first update moves a
// Started raid to InProgress.
func (s *DungeonService) UpdateRaidProgress(ctx context.Context, hunterID, raidID string, progress float64) (*models.DungeonRaid, error) {
	var out *models.DungeonRaid
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		raid, err := tx.LoadRaid(h.ID, raidID)
		if err != nil {
			return err
		}
		if !raid.Status.Live() {
			return invalidState(CodeRaidInvalidState, "raid is %s", raid.Status)
		}
		raid.Status = models.RaidStatusInProgress
		raid.Progress = clampFloat(progress, 0, 100)
		if err := tx.SaveRaid(raid); err != nil {
			return err
		}
		out = raid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteRaid closes an in-progress raid. Success pays the full reward and counts as a
// workout; failure pays a quarter of it.
func (s *DungeonService) CompleteRaid(ctx context.Context, hunterID, raidID string, successful bool) (*RaidResult, error) {
	var out *RaidResult
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		raid, err := tx.LoadRaid(h.ID, raidID)
		if err != nil {
			return err
		}
		if raid.Status != models.RaidStatusInProgress {
			return invalidState(CodeRaidInvalidState, "only an in-progress raid can be completed (raid is %s)", raid.Status)
		}
		tpl, err := tx.DungeonTemplate(raid.DungeonID)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		actual := now.Sub(raid.StartedAt).Seconds()
		next := now.Add(time.Duration(tpl.CooldownHours) * time.Hour)
		reward := RaidXP(tpl, h.Level, actual)

		raid.TotalDuration = int(actual)
		raid.CompletedAt = &now
		raid.NextAvailableAt = &next

		var events []DomainEvent
		if successful {
			raid.Status = models.RaidStatusCompleted
			raid.Progress = 100
			raid.CompletionRate = 100
			raid.XPEarned = reward
			events = append(events, RaidCompleted(raid.ID))
			if recordWorkout(h, now) {
				events = append(events, StreakUpdated())
			}
		} else {
			raid.Status = models.RaidStatusFailed
			raid.CompletionRate = raid.Progress
			raid.XPEarned = FailedRaidXP(reward)
			events = append(events, RaidFailed(raid.ID))
		}
		if err := tx.SaveRaid(raid); err != nil {
			return err
		}

		award, err := applyXP(tx, h, raid.XPEarned, "raid:"+raid.ID, now)
		if err != nil {
			return err
		}
		events = append(events, award.Events()...)
		unlocked, err := s.Achievements.dispatch(tx, h, now, events...)
		if err != nil {
			return err
		}

		logger.Info().
			Str("hunter_id", h.ID).
			Str("dungeon", tpl.Code).
			Str("status", string(raid.Status)).
			Int64("xp", raid.XPEarned).
			Int("duration_s", raid.TotalDuration).
			Msg("⚔️ raid finished")
		out = &RaidResult{Raid: raid, Award: &award, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AbandonRaid gives up a live raid: no XP, half the cooldown.
func (s *DungeonService) AbandonRaid(ctx context.Context, hunterID, raidID string) (*models.DungeonRaid, error) {
	var out *models.DungeonRaid
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		raid, err := tx.LoadRaid(h.ID, raidID)
		if err != nil {
			return err
		}
		if !raid.Status.Live() {
			return invalidState(CodeRaidInvalidState, "raid is %s", raid.Status)
		}
		tpl, err := tx.DungeonTemplate(raid.DungeonID)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		next := now.Add(time.Duration(tpl.CooldownHours) * time.Hour / 2)
		raid.Status = models.RaidStatusAbandoned
		raid.CompletionRate = raid.Progress
		raid.XPEarned = 0
		raid.TotalDuration = int(now.Sub(raid.StartedAt).Seconds())
		raid.CompletedAt = &now
		raid.NextAvailableAt = &next
		if err := tx.SaveRaid(raid); err != nil {
			return err
		}
		logger.Info().Str("hunter_id", h.ID).Str("dungeon", tpl.Code).Str("raid_id", raid.ID).Msg("🏳️ raid abandoned")
		out = raid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EstimateSuccessRate is advisory; nothing gates on it.
func (s *DungeonService) EstimateSuccessRate(ctx context.Context, hunterID, dungeonID string) (float64, error) {
	h, err := s.Store.LoadHunter(ctx, hunterID)
	if err != nil {
		return 0, err
	}
	db := s.Store.DB.WithContext(ctx)
	tpl, err := s.Store.Catalog.DungeonTemplate(db, dungeonID)
	if err != nil {
		return 0, err
	}
	items, err := equippedTemplates(db, s.Store.Catalog, hunterID)
	if err != nil {
		return 0, err
	}
	return successRate(h, effectiveStats(h, items), tpl), nil
}

func (s *DungeonService) ActiveRaid(ctx context.Context, hunterID string) (*models.DungeonRaid, error) {
	if _, err := s.Store.LoadHunter(ctx, hunterID); err != nil {
		return nil, err
	}
	return liveRaid(s.Store.DB.WithContext(ctx), hunterID)
}

// AvailableDungeons lists every open dungeon with the hunter's gate, cooldown and odds.
func (s *DungeonService) AvailableDungeons(ctx context.Context, hunterID string) ([]DungeonAvailability, error) {
	h, err := s.Store.LoadHunter(ctx, hunterID)
	if err != nil {
		return nil, err
	}
	db := s.Store.DB.WithContext(ctx)
	dungeons, err := s.Store.Catalog.Dungeons(db)
	if err != nil {
		return nil, err
	}
	items, err := equippedTemplates(db, s.Store.Catalog, hunterID)
	if err != nil {
		return nil, err
	}
	stats := effectiveStats(h, items)
	now := s.Clock.Now()

	out := make([]DungeonAvailability, 0, len(dungeons))
	for i := range dungeons {
		tpl := &dungeons[i]
		steps, err := tpl.ExerciseList()
		if err != nil {
			return nil, fmt.Errorf("decode dungeon %s exercises: %w", tpl.Code, err)
		}
		view := DungeonAvailability{
			Dungeon:     *tpl,
			Exercises:   steps,
			Eligible:    meetsDungeonGate(h, tpl),
			SuccessRate: successRate(h, stats, tpl),
		}
		last, err := lastRaid(db, hunterID, tpl.ID)
		if err != nil {
			return nil, err
		}
		if last != nil && last.NextAvailableAt != nil && now.Before(*last.NextAvailableAt) {
			at := *last.NextAvailableAt
			view.AvailableAt = &at
		}
		out = append(out, view)
	}
	return out, nil
}

// RaidHistory pages through the hunter's raids, newest first.
func (s *DungeonService) RaidHistory(ctx context.Context, hunterID string, page, size int) ([]models.DungeonRaid, int64, error) {
	page, size = normalizePage(page, size)
	scope := func() *gorm.DB {
		return s.Store.DB.WithContext(ctx).Model(&models.DungeonRaid{}).Where("hunter_id = ?", hunterID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count raids: %w", err)
	}
	var rows []models.DungeonRaid
	if err := scope().Order("started_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("load raids: %w", err)
	}
	return rows, total, nil
}
