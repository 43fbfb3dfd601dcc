package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestType string

const (
	QuestTypeStrength  QuestType = "strength"
	QuestTypeAgility   QuestType = "agility"
	QuestTypeVitality  QuestType = "vitality"
	QuestTypeEndurance QuestType = "endurance"
	QuestTypeMixed     QuestType = "mixed"
)

type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

type QuestStatus string

const (
	QuestStatusAssigned   QuestStatus = "assigned"
	QuestStatusInProgress QuestStatus = "in_progress"
	QuestStatusCompleted  QuestStatus = "completed"
)

// QuestTemplate is a read-only catalog entry. A zero target means the dimension is not tracked.
type QuestTemplate struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string     `gorm:"uniqueIndex;not null" json:"code"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	QuestType   QuestType  `gorm:"type:varchar(16);not null" json:"quest_type"`
	Difficulty  Difficulty `gorm:"type:varchar(16);not null;index" json:"difficulty"`

	TargetReps     int `json:"target_reps,omitempty"`
	TargetSets     int `json:"target_sets,omitempty"`
	TargetDuration int `json:"target_duration,omitempty"` // seconds
	TargetDistance int `json:"target_distance,omitempty"` // meters

	BaseXP           int64 `gorm:"not null" json:"base_xp"`
	StrengthBonus    int   `json:"strength_bonus"`
	AgilityBonus     int   `json:"agility_bonus"`
	VitalityBonus    int   `json:"vitality_bonus"`
	EnduranceBonus   int   `json:"endurance_bonus"`
	EstimatedMinutes int   `json:"estimated_minutes"`

	MinLevel int  `gorm:"not null;default:1" json:"min_level"`
	MinRank  Rank `gorm:"not null;default:0" json:"min_rank"`
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (t *QuestTemplate) StatBonus() Stats {
	return Stats{
		Strength:  t.StrengthBonus,
		Agility:   t.AgilityBonus,
		Vitality:  t.VitalityBonus,
		Endurance: t.EnduranceBonus,
	}
}

// QuestAssignment is one template handed to one Hunter for one calendar date.
type QuestAssignment struct {
	ID              string      `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID        string      `gorm:"type:uuid;not null;index:idx_assignment_day" json:"hunter_id"`
	QuestTemplateID string      `gorm:"type:uuid;not null" json:"quest_template_id"`
	QuestDate       string      `gorm:"type:varchar(10);not null;index:idx_assignment_day" json:"quest_date"` // YYYY-MM-DD
	Status          QuestStatus `gorm:"type:varchar(16);not null;default:'assigned'" json:"status"`

	CurrentReps     int `json:"current_reps"`
	CurrentSets     int `json:"current_sets"`
	CurrentDuration int `json:"current_duration"`
	CurrentDistance int `json:"current_distance"`

	Progress        float64 `json:"progress"` // 0-100
	XPEarned        int64   `json:"xp_earned"`
	BonusMultiplier float64 `gorm:"not null;default:1" json:"bonus_multiplier"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// QuestHistory is written once per completion and never updated.
type QuestHistory struct {
	ID               string         `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID         string         `gorm:"type:uuid;not null;index" json:"hunter_id"`
	AssignmentID     string         `gorm:"type:uuid;not null;uniqueIndex" json:"assignment_id"`
	QuestTemplateID  string         `gorm:"type:uuid;not null" json:"quest_template_id"`
	QuestName        string         `json:"quest_name"`
	XPEarned         int64          `json:"xp_earned"`
	BonusMultiplier  float64        `json:"bonus_multiplier"`
	PerfectExecution bool           `json:"perfect_execution"`
	DurationSeconds  int            `json:"duration_seconds"`
	Metadata         datatypes.JSON `json:"metadata"` // final counters snapshot
	CompletedAt      time.Time      `gorm:"index" json:"completed_at"`
}
