package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DailyQuestCount is how many quests a hunter gets per day.
const DailyQuestCount = 3

const (
	minBonusMultiplier = 0.5
	maxBonusMultiplier = 2.0
	speedBonus         = 0.25
	perfectBonus       = 0.15
	questLevelScaling  = 0.05
)

// dailyDifficulties are filled first, in order, before any fallback pick.
var dailyDifficulties = []models.Difficulty{
	models.DifficultyEasy,
	models.DifficultyMedium,
	models.DifficultyHard,
}

type QuestService struct {
	Store        *Store
	Clock        Clock
	Random       RandomSource
	Achievements *AchievementService
}

func NewQuestService(store *Store, clock Clock, random RandomSource, achievements *AchievementService) *QuestService {
	return &QuestService{Store: store, Clock: clock, Random: random, Achievements: achievements}
}

// QuestProgressUpdate carries the counters reported by the client. Nil means unchanged.
type QuestProgressUpdate struct {
	Reps     *int `json:"reps,omitempty"`
	Sets     *int `json:"sets,omitempty"`
	Duration *int `json:"duration,omitempty"`
	Distance *int `json:"distance,omitempty"`
}

func (u QuestProgressUpdate) validate() error {
	for name, v := range map[string]*int{"reps": u.Reps, "sets": u.Sets, "duration": u.Duration, "distance": u.Distance} {
		if v != nil && *v < 0 {
			return validation(CodeInvalidInput, "%s must not be negative (got %d)", name, *v)
		}
	}
	return nil
}

// DailyQuest is an assignment together with its template.
type DailyQuest struct {
	models.QuestAssignment
	Template models.QuestTemplate `json:"template"`
}

// QuestResult is what a progress update or completion did.
type QuestResult struct {
	Assignment *models.QuestAssignment      `json:"assignment"`
	Completed  bool                         `json:"completed"`
	Award      *AwardResult                 `json:"award,omitempty"`
	Unlocked   []models.AchievementTemplate `json:"unlocked_achievements,omitempty"`
}

// questDimensions pairs each defined target with the assignment's counter.
func questDimensions(tpl *models.QuestTemplate, a *models.QuestAssignment) [][2]int {
	var dims [][2]int
	if tpl.TargetReps > 0 {
		dims = append(dims, [2]int{a.CurrentReps, tpl.TargetReps})
	}
	if tpl.TargetSets > 0 {
		dims = append(dims, [2]int{a.CurrentSets, tpl.TargetSets})
	}
	if tpl.TargetDuration > 0 {
		dims = append(dims, [2]int{a.CurrentDuration, tpl.TargetDuration})
	}
	if tpl.TargetDistance > 0 {
		dims = append(dims, [2]int{a.CurrentDistance, tpl.TargetDistance})
	}
	return dims
}

// QuestProgress averages min(100, current/target*100) over the defined targets.
// A template with no targets counts as done.
func QuestProgress(tpl *models.QuestTemplate, a *models.QuestAssignment) float64 {
	dims := questDimensions(tpl, a)
	if len(dims) == 0 {
		return 100
	}
	var sum float64
	for _, d := range dims {
		sum += math.Min(100, float64(d[0])/float64(d[1])*100)
	}
	return sum / float64(len(dims))
}

// CanComplete reports whether every defined target is met.
func CanComplete(tpl *models.QuestTemplate, a *models.QuestAssignment) bool {
	for _, d := range questDimensions(tpl, a) {
		if d[0] < d[1] {
			return false
		}
	}
	return true
}

// EstimatedQuestSeconds is the time a quest should take, used for the speed bonus.
func EstimatedQuestSeconds(tpl *models.QuestTemplate) float64 {
	if tpl.EstimatedMinutes > 0 {
		return float64(tpl.EstimatedMinutes * 60)
	}
	return float64(tpl.TargetDuration) +
		float64(tpl.TargetReps*max(1, tpl.TargetSets)*3) +
		float64(tpl.TargetDistance)*0.36
}

// QuestXP = round(BaseXP * (1 + level*0.05) * multiplier).
func QuestXP(baseXP int64, level int, multiplier float64) int64 {
	return int64(math.Round(float64(baseXP) * (1 + float64(level)*questLevelScaling) * multiplier))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func parseQuestDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", validation(CodeInvalidInput, "invalid quest date %q, want YYYY-MM-DD", date)
	}
	return t.Format(DateLayout), nil
}

// GenerateDailyQuests hands out the day's quests. Without regenerate an existing set is
// returned as is; with it, unfinished assignments are replaced and completed ones kept.
func (s *QuestService) GenerateDailyQuests(ctx context.Context, hunterID, date string, regenerate bool) ([]models.QuestAssignment, error) {
	day, err := parseQuestDate(date)
	if err != nil {
		return nil, err
	}

	var out []models.QuestAssignment
	err = s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		existing, err := tx.AssignmentsForDate(h.ID, day)
		if err != nil {
			return err
		}
		if len(existing) > 0 && !regenerate {
			out = existing
			return nil
		}

		var kept []models.QuestAssignment
		for _, a := range existing {
			if a.Status == models.QuestStatusCompleted {
				kept = append(kept, a)
			}
		}
		if regenerate && len(existing) > len(kept) {
			if err := tx.DeleteOpenAssignments(h.ID, day); err != nil {
				return err
			}
		}

		eligible, err := tx.EligibleQuests(h.Level, h.Rank)
		if err != nil {
			return err
		}
		taken := make(map[string]bool, DailyQuestCount)
		covered := make(map[models.Difficulty]bool, DailyQuestCount)
		for _, a := range kept {
			taken[a.QuestTemplateID] = true
			tpl, err := tx.QuestTemplate(a.QuestTemplateID)
			if err != nil {
				return err
			}
			covered[tpl.Difficulty] = true
		}

		picks := s.pickQuests(eligible, taken, covered, DailyQuestCount-len(kept))
		fresh := make([]models.QuestAssignment, 0, len(picks))
		for _, tpl := range picks {
			fresh = append(fresh, models.QuestAssignment{
				ID:              uuid.NewString(),
				HunterID:        h.ID,
				QuestTemplateID: tpl.ID,
				QuestDate:       day,
				Status:          models.QuestStatusAssigned,
				BonusMultiplier: 1.0,
			})
		}
		if err := tx.CreateAssignments(fresh); err != nil {
			return err
		}

		logger.Info().
			Str("hunter_id", h.ID).
			Str("date", day).
			Int("assigned", len(fresh)).
			Int("kept", len(kept)).
			Bool("regenerate", regenerate).
			Msg("📜 daily quests generated")
		out = append(kept, fresh...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pickQuests takes one template per uncovered daily difficulty, then fills any
// remaining slots from whatever is left.
func (s *QuestService) pickQuests(pool []models.QuestTemplate, taken map[string]bool, covered map[models.Difficulty]bool, slots int) []models.QuestTemplate {
	var picks []models.QuestTemplate
	take := func(candidates []models.QuestTemplate) {
		if len(candidates) == 0 || len(picks) >= slots {
			return
		}
		tpl := candidates[s.Random.Intn(len(candidates))]
		taken[tpl.ID] = true
		picks = append(picks, tpl)
	}
	available := func(keep func(models.QuestTemplate) bool) []models.QuestTemplate {
		var out []models.QuestTemplate
		for _, tpl := range pool {
			if !taken[tpl.ID] && keep(tpl) {
				out = append(out, tpl)
			}
		}
		return out
	}

	for _, d := range dailyDifficulties {
		if covered[d] {
			continue
		}
		take(available(func(t models.QuestTemplate) bool { return t.Difficulty == d }))
	}
	for len(picks) < slots {
		rest := available(func(models.QuestTemplate) bool { return true })
		if len(rest) == 0 {
			break
		}
		take(rest)
	}
	return picks
}

// DailyQuests lists the hunter's assignments for a date with their templates.
func (s *QuestService) DailyQuests(ctx context.Context, hunterID, date string) ([]DailyQuest, error) {
	day, err := parseQuestDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.LoadHunter(ctx, hunterID); err != nil {
		return nil, err
	}
	db := s.Store.DB.WithContext(ctx)

	var rows []models.QuestAssignment
	if err := db.Where("hunter_id = ? AND quest_date = ?", hunterID, day).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load daily quests: %w", err)
	}
	out := make([]DailyQuest, 0, len(rows))
	for _, a := range rows {
		tpl, err := s.Store.Catalog.QuestTemplate(db, a.QuestTemplateID)
		if err != nil {
			return nil, err
		}
		out = append(out, DailyQuest{QuestAssignment: a, Template: *tpl})
	}
	return out, nil
}

func (s *QuestService) StartQuest(ctx context.Context, hunterID, assignmentID string) (*models.QuestAssignment, error) {
	var out *models.QuestAssignment
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		a, err := tx.LoadAssignment(h.ID, assignmentID)
		if err != nil {
			return err
		}
		switch a.Status {
		case models.QuestStatusInProgress:
			return invalidState(CodeQuestAlreadyStarted, "quest already started")
		case models.QuestStatusCompleted:
			return invalidState(CodeQuestCompleted, "quest already completed")
		}
		now := s.Clock.Now()
		a.Status = models.QuestStatusInProgress
		a.StartedAt = &now
		if err := tx.SaveAssignment(a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuestProgress raises the counters (never lowers them) and completes the quest
// once every target is met.
func (s *QuestService) UpdateQuestProgress(ctx context.Context, hunterID, assignmentID string, upd QuestProgressUpdate) (*QuestResult, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}

	var out *QuestResult
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		a, err := tx.LoadAssignment(h.ID, assignmentID)
		if err != nil {
			return err
		}
		if a.Status == models.QuestStatusCompleted {
			return invalidState(CodeQuestCompleted, "quest already completed")
		}
		tpl, err := tx.QuestTemplate(a.QuestTemplateID)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		timed := a.StartedAt != nil
		if a.Status == models.QuestStatusAssigned {
			a.Status = models.QuestStatusInProgress
			a.StartedAt = &now
		}
		if upd.Reps != nil {
			a.CurrentReps = max(a.CurrentReps, *upd.Reps)
		}
		if upd.Sets != nil {
			a.CurrentSets = max(a.CurrentSets, *upd.Sets)
		}
		if upd.Duration != nil {
			a.CurrentDuration = max(a.CurrentDuration, *upd.Duration)
		}
		if upd.Distance != nil {
			a.CurrentDistance = max(a.CurrentDistance, *upd.Distance)
		}
		a.Progress = QuestProgress(tpl, a)

		if CanComplete(tpl, a) {
			out, err = s.complete(tx, h, a, tpl, false, timed, now)
			return err
		}
		if err := tx.SaveAssignment(a); err != nil {
			return err
		}
		out = &QuestResult{Assignment: a}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *QuestService) CompleteQuest(ctx context.Context, hunterID, assignmentID string, perfectExecution bool) (*QuestResult, error) {
	var out *QuestResult
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		a, err := tx.LoadAssignment(h.ID, assignmentID)
		if err != nil {
			return err
		}
		if a.Status == models.QuestStatusCompleted {
			return invalidState(CodeQuestCompleted, "quest already completed")
		}
		tpl, err := tx.QuestTemplate(a.QuestTemplateID)
		if err != nil {
			return err
		}
		if !CanComplete(tpl, a) {
			return invalidState(CodeQuestTargetsNotMet, "quest targets not met (%.0f%%)", QuestProgress(tpl, a))
		}
		out, err = s.complete(tx, h, a, tpl, perfectExecution, a.StartedAt != nil, s.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// complete closes the assignment and applies every reward in the caller's transaction.
// timed is false when the quest was not started by an earlier request; such a quest has
// no measured duration and earns no speed bonus.
func (s *QuestService) complete(tx *Tx, h *models.Hunter, a *models.QuestAssignment, tpl *models.QuestTemplate, perfect, timed bool, now time.Time) (*QuestResult, error) {
	if a.StartedAt == nil {
		a.StartedAt = &now
	}
	elapsed := now.Sub(*a.StartedAt).Seconds()

	mult := 1.0
	if timed && elapsed < EstimatedQuestSeconds(tpl) {
		mult += speedBonus
	}
	if perfect {
		mult += perfectBonus
	}
	mult = clampFloat(mult, minBonusMultiplier, maxBonusMultiplier)
	xp := QuestXP(tpl.BaseXP, h.Level, mult)

	a.Status = models.QuestStatusCompleted
	a.Progress = 100
	a.CompletedAt = &now
	a.BonusMultiplier = mult
	a.XPEarned = xp
	if err := tx.SaveAssignment(a); err != nil {
		return nil, err
	}

	bonus := h.BaseStats().Add(tpl.StatBonus())
	h.Strength, h.Agility, h.Vitality, h.Endurance = bonus.Strength, bonus.Agility, bonus.Vitality, bonus.Endurance
	streakChanged := recordWorkout(h, now)

	award, err := applyXP(tx, h, xp, "quest:"+a.ID, now)
	if err != nil {
		return nil, err
	}

	meta, err := json.Marshal(map[string]int{
		"reps":     a.CurrentReps,
		"sets":     a.CurrentSets,
		"duration": a.CurrentDuration,
		"distance": a.CurrentDistance,
	})
	if err != nil {
		return nil, fmt.Errorf("encode quest metadata: %w", err)
	}
	err = tx.AppendQuestHistory(&models.QuestHistory{
		ID:               uuid.NewString(),
		HunterID:         h.ID,
		AssignmentID:     a.ID,
		QuestTemplateID:  tpl.ID,
		QuestName:        tpl.Name,
		XPEarned:         xp,
		BonusMultiplier:  mult,
		PerfectExecution: perfect,
		DurationSeconds:  int(elapsed),
		Metadata:         datatypes.JSON(meta),
		CompletedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	events := []DomainEvent{QuestCompleted(a.ID)}
	if streakChanged {
		events = append(events, StreakUpdated())
	}
	events = append(events, award.Events()...)
	unlocked, err := s.Achievements.dispatch(tx, h, now, events...)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("hunter_id", h.ID).
		Str("quest", tpl.Code).
		Int64("xp", xp).
		Float64("multiplier", mult).
		Int("streak", h.DailyStreak).
		Msg("✅ quest completed")
	return &QuestResult{Assignment: a, Completed: true, Award: &award, Unlocked: unlocked}, nil
}

// QuestHistory pages through completed quests, newest first. page starts at 1.
func (s *QuestService) QuestHistory(ctx context.Context, hunterID string, page, size int) ([]models.QuestHistory, int64, error) {
	page, size = normalizePage(page, size)
	scope := func() *gorm.DB {
		return s.Store.DB.WithContext(ctx).Model(&models.QuestHistory{}).Where("hunter_id = ?", hunterID)
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count quest history: %w", err)
	}
	var rows []models.QuestHistory
	err := scope().Order("completed_at DESC").Offset((page - 1) * size).Limit(size).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("load quest history: %w", err)
	}
	return rows, total, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
