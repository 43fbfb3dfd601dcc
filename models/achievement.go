package models

import "time"

type AchievementCategory string

const (
	CategoryConsistency AchievementCategory = "consistency"
	CategoryMilestone   AchievementCategory = "milestone"
	CategorySpecial     AchievementCategory = "special"
	CategoryProgression AchievementCategory = "progression"
	CategoryCollection  AchievementCategory = "collection"
	CategoryRank        AchievementCategory = "rank"
)

type AchievementType string

const (
	AchievementCounter     AchievementType = "counter"
	AchievementStreak      AchievementType = "streak"
	AchievementSingle      AchievementType = "single"
	AchievementProgressive AchievementType = "progressive"
)

// AchievementTemplate: static config, seeded from the default catalog
type AchievementTemplate struct {
	ID          string              `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string              `gorm:"uniqueIndex;not null" json:"code"` // e.g. "first-workout"
	Name        string              `gorm:"not null" json:"name"`
	Description string              `json:"description"`
	Category    AchievementCategory `gorm:"type:varchar(16);not null;index" json:"category"`
	Type        AchievementType     `gorm:"type:varchar(16);not null" json:"type"`
	TargetValue *int                `json:"target_value,omitempty"`
	XPReward    int64               `gorm:"not null;default:0" json:"xp_reward"`
	TitleReward *string             `json:"title_reward,omitempty"`
	IsHidden    bool                `gorm:"not null;default:false" json:"is_hidden"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// HunterAchievement: progress row. IsUnlocked never goes back to false.
type HunterAchievement struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID        string     `gorm:"type:uuid;not null;uniqueIndex:idx_hunter_achievement" json:"hunter_id"`
	AchievementID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_hunter_achievement" json:"achievement_id"`
	CurrentProgress int        `gorm:"not null;default:0" json:"current_progress"`
	IsUnlocked      bool       `gorm:"not null;default:false" json:"is_unlocked"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty"`

	Timestamps
}
