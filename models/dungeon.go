package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type RaidStatus string

const (
	RaidStatusStarted    RaidStatus = "started"
	RaidStatusInProgress RaidStatus = "in_progress"
	RaidStatusCompleted  RaidStatus = "completed"
	RaidStatusFailed     RaidStatus = "failed"
	RaidStatusAbandoned  RaidStatus = "abandoned"
)

// Live reports whether the raid still blocks the Hunter from starting another one.
func (s RaidStatus) Live() bool {
	return s == RaidStatusStarted || s == RaidStatusInProgress
}

// DungeonExercise is one ordered step of a dungeon.
type DungeonExercise struct {
	Name            string `json:"name"`
	Reps            int    `json:"reps,omitempty"`
	Sets            int    `json:"sets,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type DungeonTemplate struct {
	ID               string         `gorm:"primaryKey;type:uuid" json:"id"`
	Code             string         `gorm:"uniqueIndex;not null" json:"code"`
	Name             string         `gorm:"not null" json:"name"`
	Description      string         `gorm:"type:text" json:"description"`
	Difficulty       Difficulty     `gorm:"type:varchar(16);not null" json:"difficulty"`
	MinLevel         int            `gorm:"not null;default:1" json:"min_level"`
	MinRank          Rank           `gorm:"not null;default:0" json:"min_rank"`
	EnergyCost       int            `json:"energy_cost"`
	CooldownHours    int            `gorm:"not null;default:24" json:"cooldown_hours"`
	BaseXP           int64          `gorm:"not null" json:"base_xp"`
	BonusXP          int64          `json:"bonus_xp"`
	EstimatedMinutes int            `gorm:"not null" json:"estimated_minutes"`
	Exercises        datatypes.JSON `json:"exercises"` // []DungeonExercise
	IsActive         bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (d *DungeonTemplate) ExerciseList() ([]DungeonExercise, error) {
	if len(d.Exercises) == 0 {
		return nil, nil
	}
	var steps []DungeonExercise
	if err := json.Unmarshal(d.Exercises, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (d *DungeonTemplate) SetExercises(steps []DungeonExercise) error {
	raw, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	d.Exercises = datatypes.JSON(raw)
	return nil
}

// DungeonRaid is one attempt. Terminal states are absorbing and always carry NextAvailableAt.
type DungeonRaid struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID       string     `gorm:"type:uuid;not null;index" json:"hunter_id"`
	DungeonID      string     `gorm:"type:uuid;not null;index" json:"dungeon_id"`
	Status         RaidStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Progress       float64    `json:"progress"`
	TotalDuration  int        `json:"total_duration"` // seconds
	XPEarned       int64      `json:"xp_earned"`
	CompletionRate float64    `json:"completion_rate"`

	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	NextAvailableAt *time.Time `json:"next_available_at,omitempty"`

	Timestamps
}
