package services

import (
	"context"
	"fmt"

	"hunter-fitness/logger"
	"hunter-fitness/models"

	"github.com/google/uuid"
)

type EquipmentService struct {
	Store        *Store
	Clock        Clock
	Achievements *AchievementService
}

func NewEquipmentService(store *Store, clock Clock, achievements *AchievementService) *EquipmentService {
	return &EquipmentService{Store: store, Clock: clock, Achievements: achievements}
}

// InventoryItem is an owned piece of equipment with its catalog entry.
type InventoryItem struct {
	models.HunterEquipment
	Template models.EquipmentTemplate `json:"template"`
}

func canUseEquipment(h *models.Hunter, tpl *models.EquipmentTemplate) bool {
	return h.Level >= tpl.UnlockLevel && h.Rank.AtLeast(tpl.UnlockRank)
}

func effectiveStats(h *models.Hunter, equipped []models.EquipmentTemplate) models.Stats {
	stats := h.BaseStats()
	for i := range equipped {
		stats = stats.Add(equipped[i].StatBonus())
	}
	return stats
}

// xpMultiplier = 1 + sum(mult - 1) over equipped items.
func xpMultiplier(equipped []models.EquipmentTemplate) float64 {
	m := 1.0
	for _, it := range equipped {
		m += it.XPMultiplier - 1
	}
	return m
}

// Unlock adds a catalog item to the hunter's inventory. Unlocking an owned item is a no-op
// and reports created=false.
func (s *EquipmentService) Unlock(ctx context.Context, hunterID, equipmentID string) (*models.HunterEquipment, bool, error) {
	var (
		out     *models.HunterEquipment
		created bool
	)
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		tpl, err := tx.EquipmentTemplate(equipmentID)
		if err != nil {
			return err
		}
		owned, err := tx.FindOwnership(h.ID, tpl.ID)
		if err != nil {
			return err
		}
		if owned != nil {
			out = owned
			return nil
		}
		if !canUseEquipment(h, tpl) {
			return ineligible(CodeEquipmentLocked, tpl.UnlockLevel, tpl.UnlockRank,
				"%s requires level %d and rank %s", tpl.Name, tpl.UnlockLevel, tpl.UnlockRank)
		}

		now := s.Clock.Now()
		he := &models.HunterEquipment{
			ID:          uuid.NewString(),
			HunterID:    h.ID,
			EquipmentID: tpl.ID,
			ItemType:    tpl.ItemType,
			UnlockedAt:  now,
		}
		if err := tx.CreateHunterEquipment(he); err != nil {
			return err
		}
		if _, err := s.Achievements.dispatch(tx, h, now, EquipmentUnlocked(tpl.ID)); err != nil {
			return err
		}
		logger.Info().Str("hunter_id", h.ID).Str("equipment", tpl.Code).Msg("🗡️ equipment unlocked")
		out, created = he, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// Equip puts an owned item in its slot, taking any other item of the same type out.
func (s *EquipmentService) Equip(ctx context.Context, hunterID, hunterEquipmentID string) (*models.HunterEquipment, error) {
	var out *models.HunterEquipment
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		he, err := tx.LoadHunterEquipment(h.ID, hunterEquipmentID)
		if err != nil {
			return err
		}
		if he.IsEquipped {
			return invalidState(CodeEquipmentEquipped, "equipment already equipped")
		}
		tpl, err := tx.EquipmentTemplate(he.EquipmentID)
		if err != nil {
			return err
		}
		if !canUseEquipment(h, tpl) {
			return ineligible(CodeEquipmentLocked, tpl.UnlockLevel, tpl.UnlockRank,
				"%s requires level %d and rank %s", tpl.Name, tpl.UnlockLevel, tpl.UnlockRank)
		}

		if err := tx.UnequipSlot(h.ID, he.ItemType, he.ID); err != nil {
			return err
		}
		he.IsEquipped = true
		if err := tx.SaveHunterEquipment(he); err != nil {
			return err
		}
		out = he
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EquipmentService) Unequip(ctx context.Context, hunterID, hunterEquipmentID string) (*models.HunterEquipment, error) {
	var out *models.HunterEquipment
	err := s.Store.WithHunter(ctx, hunterID, func(tx *Tx, h *models.Hunter) error {
		he, err := tx.LoadHunterEquipment(h.ID, hunterEquipmentID)
		if err != nil {
			return err
		}
		if !he.IsEquipped {
			return invalidState(CodeEquipmentNotEquipped, "equipment is not equipped")
		}
		he.IsEquipped = false
		if err := tx.SaveHunterEquipment(he); err != nil {
			return err
		}
		out = he
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EffectiveStats is base stats plus every equipped bonus.
func (s *EquipmentService) EffectiveStats(ctx context.Context, hunterID string) (models.Stats, error) {
	h, err := s.Store.LoadHunter(ctx, hunterID)
	if err != nil {
		return models.Stats{}, err
	}
	items, err := equippedTemplates(s.Store.DB.WithContext(ctx), s.Store.Catalog, hunterID)
	if err != nil {
		return models.Stats{}, err
	}
	return effectiveStats(h, items), nil
}

func (s *EquipmentService) EffectiveXPMultiplier(ctx context.Context, hunterID string) (float64, error) {
	if _, err := s.Store.LoadHunter(ctx, hunterID); err != nil {
		return 0, err
	}
	items, err := equippedTemplates(s.Store.DB.WithContext(ctx), s.Store.Catalog, hunterID)
	if err != nil {
		return 0, err
	}
	return xpMultiplier(items), nil
}

// Inventory lists owned items, equipped first.
func (s *EquipmentService) Inventory(ctx context.Context, hunterID string) ([]InventoryItem, error) {
	if _, err := s.Store.LoadHunter(ctx, hunterID); err != nil {
		return nil, err
	}
	db := s.Store.DB.WithContext(ctx)

	var owned []models.HunterEquipment
	err := db.Where("hunter_id = ?", hunterID).
		Order("is_equipped DESC, item_type ASC, unlocked_at ASC").
		Find(&owned).Error
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	out := make([]InventoryItem, 0, len(owned))
	for _, he := range owned {
		tpl, err := s.Store.Catalog.EquipmentTemplate(db, he.EquipmentID)
		if err != nil {
			return nil, err
		}
		out = append(out, InventoryItem{HunterEquipment: he, Template: *tpl})
	}
	return out, nil
}
