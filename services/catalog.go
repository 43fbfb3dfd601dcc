package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hunter-fitness/models"

	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
)

const defaultCatalogCacheSize = 512

// Catalog serves the read-only template tables. Templates never change while a
// request is in flight, so lookups are cached without any locking of their own.
type Catalog struct {
	cache *lru.Cache
}

func NewCatalog(cacheSize int) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCatalogCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &Catalog{cache: cache}, nil
}

// Purge drops every cached template (after seeding or admin edits).
func (c *Catalog) Purge() {
	c.cache.Purge()
}

func (c *Catalog) QuestTemplate(db *gorm.DB, id string) (*models.QuestTemplate, error) {
	key := "quest:" + id
	if v, ok := c.cache.Get(key); ok {
		tpl := v.(models.QuestTemplate)
		return &tpl, nil
	}
	var tpl models.QuestTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeQuestNotFound, "quest template %s not found", id)
		}
		return nil, fmt.Errorf("load quest template: %w", err)
	}
	c.cache.Add(key, tpl)
	return &tpl, nil
}

func (c *Catalog) DungeonTemplate(db *gorm.DB, id string) (*models.DungeonTemplate, error) {
	key := "dungeon:" + id
	if v, ok := c.cache.Get(key); ok {
		tpl := v.(models.DungeonTemplate)
		return &tpl, nil
	}
	var tpl models.DungeonTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeDungeonNotFound, "dungeon %s not found", id)
		}
		return nil, fmt.Errorf("load dungeon template: %w", err)
	}
	c.cache.Add(key, tpl)
	return &tpl, nil
}

func (c *Catalog) EquipmentTemplate(db *gorm.DB, id string) (*models.EquipmentTemplate, error) {
	key := "equipment:" + id
	if v, ok := c.cache.Get(key); ok {
		tpl := v.(models.EquipmentTemplate)
		return &tpl, nil
	}
	var tpl models.EquipmentTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeEquipmentNotFound, "equipment %s not found", id)
		}
		return nil, fmt.Errorf("load equipment template: %w", err)
	}
	c.cache.Add(key, tpl)
	return &tpl, nil
}

// AchievementsByCategory returns templates in any of the given categories, ordered by code.
func (c *Catalog) AchievementsByCategory(db *gorm.DB, categories []models.AchievementCategory) ([]models.AchievementTemplate, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = string(cat)
	}
	sort.Strings(names)
	key := "achievements:" + strings.Join(names, ",")
	if v, ok := c.cache.Get(key); ok {
		return append([]models.AchievementTemplate(nil), v.([]models.AchievementTemplate)...), nil
	}

	var out []models.AchievementTemplate
	if err := db.Where("category IN ?", names).Order("code ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	c.cache.Add(key, out)
	return append([]models.AchievementTemplate(nil), out...), nil
}

// EligibleQuests lists active quest templates whose gate the given level/rank passes.
func (c *Catalog) EligibleQuests(db *gorm.DB, level int, rank models.Rank) ([]models.QuestTemplate, error) {
	var out []models.QuestTemplate
	err := db.Where("is_active = ? AND min_level <= ? AND min_rank <= ?", true, level, rank).
		Order("code ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load eligible quests: %w", err)
	}
	return out, nil
}

func (c *Catalog) Dungeons(db *gorm.DB) ([]models.DungeonTemplate, error) {
	var out []models.DungeonTemplate
	if err := db.Where("is_active = ?", true).Order("min_level ASC, code ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load dungeons: %w", err)
	}
	return out, nil
}

func (c *Catalog) AllAchievements(db *gorm.DB) ([]models.AchievementTemplate, error) {
	var out []models.AchievementTemplate
	if err := db.Order("category ASC, code ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	return out, nil
}

// SetEquipmentIcon points a catalog item at an uploaded icon.
func (c *Catalog) SetEquipmentIcon(ctx context.Context, db *gorm.DB, equipmentID, iconURL string) error {
	res := db.WithContext(ctx).Model(&models.EquipmentTemplate{}).
		Where("id = ?", equipmentID).
		Update("icon_url", iconURL)
	if res.Error != nil {
		return fmt.Errorf("update equipment icon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(CodeEquipmentNotFound, "equipment %s not found", equipmentID)
	}
	c.cache.Remove("equipment:" + equipmentID)
	return nil
}
