package services

import (
	"context"
	"fmt"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
)

type AchievementService struct {
	Store *Store
	Clock Clock
}

func NewAchievementService(store *Store, clock Clock) *AchievementService {
	return &AchievementService{Store: store, Clock: clock}
}

// AchievementView is one achievement as the hunter sees it.
type AchievementView struct {
	models.AchievementTemplate
	CurrentProgress int        `json:"current_progress"`
	IsUnlocked      bool       `json:"is_unlocked"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty"`
}

func validateEvent(ev DomainEvent) error {
	if !ev.Type.Known() {
		return validation(CodeUnknownEvent, "unknown event type %q", ev.Type)
	}
	if ev.Increment < 0 {
		return validation(CodeInvalidInput, "event increment must not be negative (got %d)", ev.Increment)
	}
	return nil
}

// RecordEvent feeds a single event to the achievement engine and returns what it unlocked.
func (s *AchievementService) RecordEvent(ctx context.Context, hunterID string, eventType EventType, increment int) ([]models.AchievementTemplate, error) {
	ev := DomainEvent{Type: eventType, Increment: increment}
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	var unlocked []models.AchievementTemplate
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		var err error
		unlocked, err = s.dispatch(tx, h, s.Clock.Now(), ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// dispatch advances every candidate achievement for each event. Unlock XP goes through
// applyXP and does not produce further events.
func (s *AchievementService) dispatch(tx *Tx, h *models.Hunter, now time.Time, events ...DomainEvent) ([]models.AchievementTemplate, error) {
	var unlocked []models.AchievementTemplate
	for _, ev := range events {
		if err := validateEvent(ev); err != nil {
			return nil, err
		}
		cats := eventCategories[ev.Type]
		if len(cats) == 0 {
			logger.Debug().Str("hunter_id", h.ID).Str("event", string(ev.Type)).Msg("event recorded, no achievement category")
			continue
		}

		templates, err := tx.AchievementsByCategory(cats)
		if err != nil {
			return nil, err
		}
		if len(templates) == 0 {
			continue
		}
		ids := make([]string, len(templates))
		for i, tpl := range templates {
			ids[i] = tpl.ID
		}
		progress, err := tx.AchievementProgress(h.ID, ids)
		if err != nil {
			return nil, err
		}

		for _, tpl := range templates {
			// The workout behind a streak change already counted for its category.
			if ev.Type == EventStreakUpdated && tpl.Type != models.AchievementStreak {
				continue
			}
			row, exists := progress[tpl.ID]
			if exists && row.IsUnlocked {
				continue
			}
			if !exists {
				row = &models.HunterAchievement{
					ID:            uuid.NewString(),
					HunterID:      h.ID,
					AchievementID: tpl.ID,
				}
			}

			switch tpl.Type {
			case models.AchievementCounter, models.AchievementProgressive:
				row.CurrentProgress = max(row.CurrentProgress, row.CurrentProgress+ev.Increment)
			case models.AchievementStreak:
				row.CurrentProgress = max(row.CurrentProgress, h.DailyStreak)
			case models.AchievementSingle:
				row.CurrentProgress = max(row.CurrentProgress, 1)
			}

			reached := tpl.Type == models.AchievementSingle ||
				(tpl.TargetValue != nil && row.CurrentProgress >= *tpl.TargetValue)
			if reached {
				row.IsUnlocked = true
				row.UnlockedAt = &now
			}

			if exists {
				err = tx.SaveHunterAchievement(row)
			} else {
				err = tx.CreateHunterAchievement(row)
			}
			if err != nil {
				return nil, err
			}

			if !reached {
				continue
			}
			if err := s.grantReward(tx, h, tpl, now); err != nil {
				return nil, err
			}
			unlocked = append(unlocked, tpl)
		}
	}
	return unlocked, nil
}

func (s *AchievementService) grantReward(tx *Tx, h *models.Hunter, tpl models.AchievementTemplate, now time.Time) error {
	if tpl.TitleReward != nil && *tpl.TitleReward != "" {
		h.CurrentTitle = *tpl.TitleReward
	}
	if tpl.XPReward > 0 {
		if _, err := applyXP(tx, h, tpl.XPReward, "achievement:"+tpl.Code, now); err != nil {
			return err
		}
	} else if err := tx.SaveHunter(h); err != nil {
		return err
	}
	logger.Info().
		Str("hunter_id", h.ID).
		Str("achievement", tpl.Code).
		Int64("xp_reward", tpl.XPReward).
		Msg("🏆 achievement unlocked")
	return nil
}

// HunterAchievements lists every visible achievement with the hunter's progress.
// Hidden ones only show up once unlocked.
func (s *AchievementService) HunterAchievements(ctx context.Context, hunterID string) ([]AchievementView, error) {
	if _, err := s.Store.LoadHunter(ctx, hunterID); err != nil {
		return nil, err
	}
	db := s.Store.DB.WithContext(ctx)

	templates, err := s.Store.Catalog.AllAchievements(db)
	if err != nil {
		return nil, err
	}
	var rows []models.HunterAchievement
	if err := db.Where("hunter_id = ?", hunterID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load hunter achievements: %w", err)
	}
	byID := make(map[string]models.HunterAchievement, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	out := make([]AchievementView, 0, len(templates))
	for _, tpl := range templates {
		row := byID[tpl.ID]
		if tpl.IsHidden && !row.IsUnlocked {
			continue
		}
		out = append(out, AchievementView{
			AchievementTemplate: tpl,
			CurrentProgress:     row.CurrentProgress,
			IsUnlocked:          row.IsUnlocked,
			UnlockedAt:          row.UnlockedAt,
		})
	}
	return out, nil
}
