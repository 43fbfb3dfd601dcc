package models

import "time"

type ItemType string

const (
	ItemTypeWeapon    ItemType = "weapon"
	ItemTypeArmor     ItemType = "armor"
	ItemTypeAccessory ItemType = "accessory"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

type EquipmentTemplate struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string   `gorm:"uniqueIndex;not null" json:"code"`
	Name        string   `gorm:"not null" json:"name"`
	Description string   `gorm:"type:text" json:"description"`
	ItemType    ItemType `gorm:"type:varchar(16);not null" json:"item_type"`
	Rarity      Rarity   `gorm:"type:varchar(16);not null;default:'common'" json:"rarity"`
	IconURL     string   `gorm:"type:text" json:"icon_url,omitempty"` // R2/CDN url

	StrengthBonus  int     `json:"strength_bonus"`
	AgilityBonus   int     `json:"agility_bonus"`
	VitalityBonus  int     `json:"vitality_bonus"`
	EnduranceBonus int     `json:"endurance_bonus"`
	XPMultiplier   float64 `gorm:"not null;default:1" json:"xp_multiplier"`

	UnlockLevel int       `gorm:"not null;default:1" json:"unlock_level"`
	UnlockRank  Rank      `gorm:"not null;default:0" json:"unlock_rank"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (e *EquipmentTemplate) StatBonus() Stats {
	return Stats{
		Strength:  e.StrengthBonus,
		Agility:   e.AgilityBonus,
		Vitality:  e.VitalityBonus,
		Endurance: e.EnduranceBonus,
	}
}

// HunterEquipment is the ownership row. At most one row per (HunterID, ItemType) is equipped.
type HunterEquipment struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	HunterID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_hunter_item;index:idx_hunter_slot" json:"hunter_id"`
	EquipmentID string    `gorm:"type:uuid;not null;uniqueIndex:idx_hunter_item" json:"equipment_id"`
	ItemType    ItemType  `gorm:"type:varchar(16);not null;index:idx_hunter_slot" json:"item_type"`
	IsEquipped  bool      `gorm:"not null;default:false" json:"is_equipped"`
	UnlockedAt  time.Time `gorm:"not null" json:"unlocked_at"`

	Timestamps
}
