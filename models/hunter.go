package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Rank is the coarse tier a Hunter holds. Ordinal order is the ladder order (E lowest).
type Rank int

const (
	RankE Rank = iota
	RankD
	RankC
	RankB
	RankA
	RankS
	RankSS
	RankSSS
)

var rankNames = [...]string{"E", "D", "C", "B", "A", "S", "SS", "SSS"}

func (r Rank) String() string {
	if r < RankE || r > RankSSS {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// AtLeast reports whether r sits at or above other on the ladder.
func (r Rank) AtLeast(other Rank) bool {
	return r >= other
}

func ParseRank(s string) (Rank, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range rankNames {
		if name == s {
			return Rank(i), nil
		}
	}
	return RankE, fmt.Errorf("unknown rank %q", s)
}

func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	parsed, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the rank as its ordinal so SQL comparisons follow the ladder.
func (r Rank) Value() (driver.Value, error) {
	return int64(r), nil
}

func (r *Rank) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*r = Rank(v)
	case int32:
		*r = Rank(v)
	case []byte:
		return r.scanText(string(v))
	case string:
		return r.scanText(v)
	case nil:
		*r = RankE
	default:
		return fmt.Errorf("cannot scan %T into Rank", src)
	}
	return nil
}

func (r *Rank) scanText(s string) error {
	if n, err := strconv.Atoi(s); err == nil {
		*r = Rank(n)
		return nil
	}
	return r.UnmarshalText([]byte(s))
}

// Hunter is the player aggregate. XP/Level/Rank are only ever written by the leveling code.
type Hunter struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // gateway X-User-ID
	HunterName     string `gorm:"not null" json:"hunter_name"`

	// Core progression
	Level     int   `gorm:"not null;default:1" json:"level"`
	CurrentXP int64 `gorm:"not null;default:0" json:"current_xp"` // banked toward next level
	TotalXP   int64 `gorm:"not null;default:0;index" json:"total_xp"`
	Rank      Rank  `gorm:"not null;default:0" json:"rank"`

	// Base stats
	Strength  int `gorm:"not null;default:10" json:"strength"`
	Agility   int `gorm:"not null;default:10" json:"agility"`
	Vitality  int `gorm:"not null;default:10" json:"vitality"`
	Endurance int `gorm:"not null;default:10" json:"endurance"`

	// Activity counters
	DailyStreak     int    `gorm:"not null;default:0" json:"daily_streak"`
	LongestStreak   int    `gorm:"not null;default:0" json:"longest_streak"`
	LastWorkoutDate string `gorm:"type:varchar(10)" json:"last_workout_date,omitempty"` // YYYY-MM-DD
	TotalWorkouts   int    `gorm:"not null;default:0" json:"total_workouts"`

	CurrentTitle string `json:"current_title,omitempty"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	Timestamps
}

// Stats is a flat bundle of the four hunter attributes.
type Stats struct {
	Strength  int `json:"strength"`
	Agility   int `json:"agility"`
	Vitality  int `json:"vitality"`
	Endurance int `json:"endurance"`
}

func (s Stats) Total() int {
	return s.Strength + s.Agility + s.Vitality + s.Endurance
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Strength:  s.Strength + o.Strength,
		Agility:   s.Agility + o.Agility,
		Vitality:  s.Vitality + o.Vitality,
		Endurance: s.Endurance + o.Endurance,
	}
}

func (h *Hunter) BaseStats() Stats {
	return Stats{Strength: h.Strength, Agility: h.Agility, Vitality: h.Vitality, Endurance: h.Endurance}
}

// XPEvent is the append-only ledger of every XP grant.
type XPEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID    string    `gorm:"type:uuid;index;not null" json:"hunter_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Source      string    `gorm:"not null" json:"source"` // e.g. "quest:<id>", "achievement:<code>"
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	RankAfter   Rank      `json:"rank_after"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
