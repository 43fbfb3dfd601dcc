package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
)

// BaseXPPerLevel is the XP needed to go from level 1 to level 2.
const BaseXPPerLevel = 100

// LevelGrowth scales the requirement of each following level.
const LevelGrowth = 1.5

// XPRequiredForLevel returns the XP needed to go from level to level+1.
// L_n = floor(100 * 1.5^(n-1)); levels below 1 count as 1.
func XPRequiredForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	v := math.Floor(BaseXPPerLevel * math.Pow(LevelGrowth, float64(level-1)))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// rankFloors: minimum level for each rank, indexed by rank ordinal.
var rankFloors = [...]int{
	models.RankE:   1,
	models.RankD:   11,
	models.RankC:   21,
	models.RankB:   36,
	models.RankA:   51,
	models.RankS:   71,
	models.RankSS:  86,
	models.RankSSS: 96,
}

func RankForLevel(level int) models.Rank {
	for r := models.RankSSS; r > models.RankE; r-- {
		if level >= rankFloors[r] {
			return r
		}
	}
	return models.RankE
}

// MinLevelForRank is the first level that holds the given rank.
func MinLevelForRank(r models.Rank) int {
	if r < models.RankE || r > models.RankSSS {
		return 1
	}
	return rankFloors[r]
}

// LevelProgressPercentage is how far the hunter is toward the next level (0-100).
func LevelProgressPercentage(h *models.Hunter) float64 {
	req := XPRequiredForLevel(h.Level)
	if req <= 0 {
		return 0
	}
	return float64(h.CurrentXP) / float64(req) * 100
}

// AwardResult describes what one XP grant did to the hunter.
type AwardResult struct {
	Awarded      int64       `json:"awarded"`
	NewLevel     int         `json:"new_level"`
	LeveledUp    bool        `json:"leveled_up"`
	LevelsGained int         `json:"levels_gained"`
	NewRank      models.Rank `json:"new_rank"`
	RankChanged  bool        `json:"rank_changed"`
	RanksGained  int         `json:"ranks_gained"`
	CurrentXP    int64       `json:"current_xp"`
}

// Events returns the level_up / rank_up events this award produced.
func (r AwardResult) Events() []DomainEvent {
	var out []DomainEvent
	if r.LeveledUp {
		out = append(out, LeveledUp(r.LevelsGained))
	}
	if r.RankChanged && r.RanksGained > 0 {
		out = append(out, RankedUp(r.RanksGained))
	}
	return out
}

// applyXP is the only code path that changes XP, Level and Rank. It persists the hunter
// and appends an XPEvent, but never dispatches achievement events.
func applyXP(tx *Tx, h *models.Hunter, amount int64, source string, now time.Time) (AwardResult, error) {
	if amount < 0 {
		return AwardResult{}, validation(CodeNegativeXP, "xp amount must not be negative (got %d)", amount)
	}
	// CurrentXP never exceeds TotalXP, so one check covers both counters.
	if amount > math.MaxInt64-h.TotalXP {
		return AwardResult{}, validation(CodeInvalidInput, "xp amount %d would overflow the hunter's total", amount)
	}

	levelBefore := h.Level
	rankBefore := h.Rank

	h.CurrentXP += amount
	h.TotalXP += amount

	// Level-up loop: one grant can carry the hunter over several levels
	for {
		req := XPRequiredForLevel(h.Level)
		if req == math.MaxInt64 || h.CurrentXP < req {
			break
		}
		h.CurrentXP -= req
		h.Level++
	}
	if h.Level > levelBefore {
		h.LastLevelUpAt = &now
	}

	newRank := RankForLevel(h.Level)
	if newRank != h.Rank {
		h.Rank = newRank
		if newRank > rankBefore {
			h.LastRankUpAt = &now
		}
	}

	if err := tx.SaveHunter(h); err != nil {
		return AwardResult{}, err
	}
	err := tx.AppendXPEvent(&models.XPEvent{
		ID:          uuid.NewString(),
		HunterID:    h.ID,
		Amount:      amount,
		Source:      source,
		LevelBefore: levelBefore,
		LevelAfter:  h.Level,
		RankAfter:   h.Rank,
		CreatedAt:   now,
	})
	if err != nil {
		return AwardResult{}, err
	}

	res := AwardResult{
		Awarded:      amount,
		NewLevel:     h.Level,
		LeveledUp:    h.Level > levelBefore,
		LevelsGained: h.Level - levelBefore,
		NewRank:      h.Rank,
		RankChanged:  h.Rank != rankBefore,
		RanksGained:  int(h.Rank - rankBefore),
		CurrentXP:    h.CurrentXP,
	}

	logger.Info().
		Str("hunter_id", h.ID).
		Int64("xp", amount).
		Str("source", source).
		Int("level", h.Level).
		Str("rank", h.Rank.String()).
		Msg("🎮 XP awarded")
	if res.LeveledUp {
		logger.Info().Str("hunter_id", h.ID).Int("from", levelBefore).Int("to", h.Level).Msg("⬆️ level up")
	}
	if res.RankChanged {
		logger.Info().Str("hunter_id", h.ID).Str("from", rankBefore.String()).Str("to", h.Rank.String()).Msg("🏅 rank up")
	}
	return res, nil
}

type LevelingService struct {
	Store        *Store
	Clock        Clock
	Achievements *AchievementService
}

func NewLevelingService(store *Store, clock Clock, achievements *AchievementService) *LevelingService {
	return &LevelingService{Store: store, Clock: clock, Achievements: achievements}
}

// AwardXP grants XP outside of any quest or raid (admin grants, promotions) and reports
// the resulting level_up / rank_up events to the achievement engine.
func (s *LevelingService) AwardXP(ctx context.Context, hunterID string, amount int64, source string) (AwardResult, error) {
	if amount < 0 {
		return AwardResult{}, validation(CodeNegativeXP, "xp amount must not be negative (got %d)", amount)
	}
	if source == "" {
		source = "manual"
	}

	var res AwardResult
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		now := s.Clock.Now()
		award, err := applyXP(tx, h, amount, source, now)
		if err != nil {
			return err
		}
		if _, err := s.Achievements.dispatch(tx, h, now, award.Events()...); err != nil {
			return err
		}
		res = award
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}
	return res, nil
}

// XPCursor marks a position in a hunter's ledger. Rows written by one operation share a
// timestamp, so the id breaks ties.
type XPCursor struct {
	At time.Time
	ID string
}

// CursorAt is the cursor pointing at ev.
func CursorAt(ev models.XPEvent) XPCursor {
	return XPCursor{At: ev.CreatedAt, ID: ev.ID}
}

// XPEventsSince returns up to limit ledger rows after the cursor, oldest first.
func (s *LevelingService) XPEventsSince(ctx context.Context, hunterID string, after XPCursor, limit int) ([]models.XPEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.XPEvent
	err := s.Store.DB.WithContext(ctx).
		Where("hunter_id = ?", hunterID).
		Where("created_at > ? OR (created_at = ? AND id > ?)", after.At, after.At, after.ID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load xp events: %w", err)
	}
	return out, nil
}

// LatestXPCursor points at the hunter's newest ledger row, or is zero for an empty ledger.
func (s *LevelingService) LatestXPCursor(ctx context.Context, hunterID string) (XPCursor, error) {
	var ev models.XPEvent
	err := s.Store.DB.WithContext(ctx).
		Where("hunter_id = ?", hunterID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&ev).Error
	if err != nil {
		return XPCursor{}, fmt.Errorf("load latest xp event: %w", err)
	}
	if ev.ID == "" {
		return XPCursor{}, nil
	}
	return CursorAt(ev), nil
}
