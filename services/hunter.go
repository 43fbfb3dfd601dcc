package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HunterService struct {
	Store *Store
	Clock Clock
}

func NewHunterService(store *Store, clock Clock) *HunterService {
	return &HunterService{Store: store, Clock: clock}
}

// NormalizeHunterName collapses whitespace and title-cases each word.
func NormalizeHunterName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(fields, " "))
}

// RegisterHunter returns the hunter for an external user, creating it on first sight.
// The bool is true when a new hunter was created.
func (s *HunterService) RegisterHunter(ctx context.Context, externalUserID, name string) (*models.Hunter, bool, error) {
	externalUserID = strings.TrimSpace(externalUserID)
	if externalUserID == "" {
		return nil, false, validation(CodeInvalidInput, "external user id is required")
	}
	name = NormalizeHunterName(name)
	if name == "" {
		return nil, false, validation(CodeInvalidInput, "hunter name is required")
	}

	if h, err := s.HunterByExternalID(ctx, externalUserID); err == nil {
		return h, false, nil
	} else if !IsKind(err, KindNotFound) {
		return nil, false, err
	}

	h := models.Hunter{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		HunterName:     name,
		Level:          1,
		Rank:           models.RankE,
		Strength:       10,
		Agility:        10,
		Vitality:       10,
		Endurance:      10,
	}
	res := s.Store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_user_id"}}, DoNothing: true}).
		Create(&h)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create hunter: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a registration race; the other request's row wins.
		existing, err := s.HunterByExternalID(ctx, externalUserID)
		return existing, false, err
	}
	logger.Info().Str("hunter_id", h.ID).Str("external_user_id", externalUserID).Msg("🆕 hunter registered")
	return &h, true, nil
}

func (s *HunterService) HunterByExternalID(ctx context.Context, externalUserID string) (*models.Hunter, error) {
	var h models.Hunter
	err := s.Store.DB.WithContext(ctx).Where("external_user_id = ?", externalUserID).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(CodeHunterNotFound, "no hunter for user %s", externalUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load hunter by external id: %w", err)
	}
	return &h, nil
}

// HunterProfile is the hunter plus everything derived from level and gear.
type HunterProfile struct {
	Hunter          *models.Hunter `json:"hunter"`
	EffectiveStats  models.Stats   `json:"effective_stats"`
	XPMultiplier    float64        `json:"xp_multiplier"`
	LevelProgress   float64        `json:"level_progress"`
	XPToNextLevel   int64          `json:"xp_to_next_level"`
	NextRank        *models.Rank   `json:"next_rank,omitempty"`
	NextRankAtLevel int            `json:"next_rank_at_level,omitempty"`
}

func (s *HunterService) Profile(ctx context.Context, hunterID string) (*HunterProfile, error) {
	h, err := s.Store.LoadHunter(ctx, hunterID)
	if err != nil {
		return nil, err
	}
	items, err := equippedTemplates(s.Store.DB.WithContext(ctx), s.Store.Catalog, hunterID)
	if err != nil {
		return nil, err
	}

	p := &HunterProfile{
		Hunter:         h,
		EffectiveStats: effectiveStats(h, items),
		XPMultiplier:   xpMultiplier(items),
		LevelProgress:  LevelProgressPercentage(h),
		XPToNextLevel:  XPRequiredForLevel(h.Level) - h.CurrentXP,
	}
	if h.Rank < models.RankSSS {
		next := h.Rank + 1
		p.NextRank = &next
		p.NextRankAtLevel = MinLevelForRank(next)
	}
	return p, nil
}

// recordWorkout counts a finished workout and moves the daily streak.
// Same day keeps the streak, the day after extends it, anything later restarts at 1.
// Reports whether DailyStreak changed.
func recordWorkout(h *models.Hunter, now time.Time) bool {
	today := dateKey(now)
	yesterday := dateKey(now.AddDate(0, 0, -1))
	before := h.DailyStreak

	h.TotalWorkouts++
	switch h.LastWorkoutDate {
	case today:
	case yesterday:
		h.DailyStreak++
	default:
		h.DailyStreak = 1
	}
	h.LastWorkoutDate = today
	if h.DailyStreak > h.LongestStreak {
		h.LongestStreak = h.DailyStreak
	}
	return h.DailyStreak != before
}

// DecayStreaks zeroes the streak of every hunter who missed yesterday.
func (s *HunterService) DecayStreaks(ctx context.Context, today time.Time) (int64, error) {
	cutoff := dateKey(today.AddDate(0, 0, -1))
	res := s.Store.DB.WithContext(ctx).
		Model(&models.Hunter{}).
		Where("daily_streak > ? AND last_workout_date < ?", 0, cutoff).
		Update("daily_streak", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("decay streaks: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Info().Int64("hunters", res.RowsAffected).Str("cutoff", cutoff).Msg("🔥 streaks reset")
	}
	return res.RowsAffected, nil
}

// HunterIDs lists every hunter id, oldest first.
func (s *HunterService) HunterIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.Store.DB.WithContext(ctx).Model(&models.Hunter{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list hunter ids: %w", err)
	}
	return ids, nil
}

type LeaderboardEntry struct {
	Position     int         `json:"position"`
	HunterID     string      `json:"hunter_id"`
	HunterName   string      `json:"hunter_name"`
	Level        int         `json:"level"`
	Rank         models.Rank `json:"rank"`
	TotalXP      int64       `json:"total_xp"`
	CurrentTitle string      `json:"current_title,omitempty"`
}

func (s *HunterService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var hunters []models.Hunter
	err := s.Store.DB.WithContext(ctx).
		Order("total_xp DESC, level DESC, created_at ASC").
		Limit(limit).
		Find(&hunters).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, len(hunters))
	for i, h := range hunters {
		out[i] = LeaderboardEntry{
			Position:     i + 1,
			HunterID:     h.ID,
			HunterName:   h.HunterName,
			Level:        h.Level,
			Rank:         h.Rank,
			TotalXP:      h.TotalXP,
			CurrentTitle: h.CurrentTitle,
		}
	}
	return out, nil
}
