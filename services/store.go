package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hunter-fitness/models"

	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns the database handle and the per-Hunter write serialization.
type Store struct {
	DB      *gorm.DB
	Catalog *Catalog

	locks *xsync.MapOf[string, *hunterLock]
}

// hunterLock is dropped from the map once no caller holds or waits on it.
// refs is only touched inside MapOf.Compute for its key.
type hunterLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(db *gorm.DB, catalog *Catalog) *Store {
	return &Store{
		DB:      db,
		Catalog: catalog,
		locks:   xsync.NewMapOf[string, *hunterLock](),
	}
}

// AutoMigrate creates every table the engine touches.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Hunter{},
		&models.XPEvent{},
		&models.QuestTemplate{},
		&models.QuestAssignment{},
		&models.QuestHistory{},
		&models.DungeonTemplate{},
		&models.DungeonRaid{},
		&models.EquipmentTemplate{},
		&models.HunterEquipment{},
		&models.AchievementTemplate{},
		&models.HunterAchievement{},
	)
}

// WithHunter runs fn as one transaction holding the Hunter's lock. The in-process
// mutex orders writers inside this instance; the row lock covers other instances.
// Any error from fn rolls back every write made through tx.
func (s *Store) WithHunter(ctx context.Context, hunterID string, fn func(tx *Tx, h *models.Hunter) error) error {
	l := s.lock(hunterID)
	defer s.unlock(hunterID, l)

	return s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := &Tx{db: db, catalog: s.Catalog}
		h, err := tx.LoadHunter(hunterID)
		if err != nil {
			return err
		}
		return fn(tx, h)
	})
}

func (s *Store) lock(hunterID string) *hunterLock {
	l, _ := s.locks.Compute(hunterID, func(old *hunterLock, loaded bool) (*hunterLock, bool) {
		if !loaded {
			old = &hunterLock{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()
	return l
}

func (s *Store) unlock(hunterID string, l *hunterLock) {
	l.mu.Unlock()
	s.locks.Compute(hunterID, func(old *hunterLock, loaded bool) (*hunterLock, bool) {
		if !loaded {
			return old, true
		}
		old.refs--
		return old, old.refs == 0
	})
}

// LoadHunter reads a Hunter outside any transaction.
func (s *Store) LoadHunter(ctx context.Context, hunterID string) (*models.Hunter, error) {
	var h models.Hunter
	if err := s.DB.WithContext(ctx).First(&h, "id = ?", hunterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeHunterNotFound, "hunter %s not found", hunterID)
		}
		return nil, fmt.Errorf("load hunter: %w", err)
	}
	return &h, nil
}

// Tx is the unit of work handed to engine code inside WithHunter.
type Tx struct {
	db      *gorm.DB
	catalog *Catalog
}

func (t *Tx) LoadHunter(hunterID string) (*models.Hunter, error) {
	var h models.Hunter
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&h, "id = ?", hunterID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeHunterNotFound, "hunter %s not found", hunterID)
		}
		return nil, fmt.Errorf("load hunter: %w", err)
	}
	return &h, nil
}

func (t *Tx) SaveHunter(h *models.Hunter) error {
	if err := t.db.Save(h).Error; err != nil {
		return fmt.Errorf("save hunter: %w", err)
	}
	return nil
}

func (t *Tx) AppendXPEvent(ev *models.XPEvent) error {
	if err := t.db.Create(ev).Error; err != nil {
		return fmt.Errorf("append xp event: %w", err)
	}
	return nil
}

// --- Quests ---

func (t *Tx) QuestTemplate(id string) (*models.QuestTemplate, error) {
	return t.catalog.QuestTemplate(t.db, id)
}

func (t *Tx) EligibleQuests(level int, rank models.Rank) ([]models.QuestTemplate, error) {
	return t.catalog.EligibleQuests(t.db, level, rank)
}

func (t *Tx) LoadAssignment(hunterID, assignmentID string) (*models.QuestAssignment, error) {
	var a models.QuestAssignment
	err := t.db.Where("id = ? AND hunter_id = ?", assignmentID, hunterID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeAssignmentNotFound, "quest assignment %s not found", assignmentID)
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	return &a, nil
}

func (t *Tx) SaveAssignment(a *models.QuestAssignment) error {
	if err := t.db.Save(a).Error; err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

func (t *Tx) AssignmentsForDate(hunterID, date string) ([]models.QuestAssignment, error) {
	var out []models.QuestAssignment
	err := t.db.Where("hunter_id = ? AND quest_date = ?", hunterID, date).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load assignments for %s: %w", date, err)
	}
	return out, nil
}

func (t *Tx) CreateAssignments(items []models.QuestAssignment) error {
	if len(items) == 0 {
		return nil
	}
	if err := t.db.Create(&items).Error; err != nil {
		return fmt.Errorf("create assignments: %w", err)
	}
	return nil
}

// DeleteOpenAssignments soft-deletes the day's assignments that are not completed.
func (t *Tx) DeleteOpenAssignments(hunterID, date string) error {
	err := t.db.Where("hunter_id = ? AND quest_date = ? AND status <> ?", hunterID, date, models.QuestStatusCompleted).
		Delete(&models.QuestAssignment{}).Error
	if err != nil {
		return fmt.Errorf("delete open assignments: %w", err)
	}
	return nil
}

func (t *Tx) AppendQuestHistory(h *models.QuestHistory) error {
	if err := t.db.Create(h).Error; err != nil {
		return fmt.Errorf("append quest history: %w", err)
	}
	return nil
}

// --- Dungeons ---

func (t *Tx) DungeonTemplate(id string) (*models.DungeonTemplate, error) {
	return t.catalog.DungeonTemplate(t.db, id)
}

func (t *Tx) LoadRaid(hunterID, raidID string) (*models.DungeonRaid, error) {
	var r models.DungeonRaid
	err := t.db.Where("id = ? AND hunter_id = ?", raidID, hunterID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeRaidNotFound, "raid %s not found", raidID)
		}
		return nil, fmt.Errorf("load raid: %w", err)
	}
	return &r, nil
}

func (t *Tx) CreateRaid(r *models.DungeonRaid) error {
	if err := t.db.Create(r).Error; err != nil {
		return fmt.Errorf("create raid: %w", err)
	}
	return nil
}

func (t *Tx) SaveRaid(r *models.DungeonRaid) error {
	if err := t.db.Save(r).Error; err != nil {
		return fmt.Errorf("save raid: %w", err)
	}
	return nil
}

// LiveRaid returns the Hunter's Started/InProgress raid, or nil.
func (t *Tx) LiveRaid(hunterID string) (*models.DungeonRaid, error) {
	return liveRaid(t.db, hunterID)
}

func liveRaid(db *gorm.DB, hunterID string) (*models.DungeonRaid, error) {
	var r models.DungeonRaid
	err := db.Where("hunter_id = ? AND status IN ?", hunterID,
		[]models.RaidStatus{models.RaidStatusStarted, models.RaidStatusInProgress}).
		Order("started_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load live raid: %w", err)
	}
	return &r, nil
}

// LastRaid returns the most recent raid of this dungeon by this Hunter, or nil.
func (t *Tx) LastRaid(hunterID, dungeonID string) (*models.DungeonRaid, error) {
	return lastRaid(t.db, hunterID, dungeonID)
}

func lastRaid(db *gorm.DB, hunterID, dungeonID string) (*models.DungeonRaid, error) {
	var r models.DungeonRaid
	err := db.Where("hunter_id = ? AND dungeon_id = ?", hunterID, dungeonID).
		Order("started_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last raid: %w", err)
	}
	return &r, nil
}

// --- Equipment ---

func (t *Tx) EquipmentTemplate(id string) (*models.EquipmentTemplate, error) {
	return t.catalog.EquipmentTemplate(t.db, id)
}

func (t *Tx) LoadHunterEquipment(hunterID, hunterEquipmentID string) (*models.HunterEquipment, error) {
	var he models.HunterEquipment
	err := t.db.Where("id = ? AND hunter_id = ?", hunterEquipmentID, hunterID).First(&he).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(CodeEquipmentNotOwned, "equipment %s is not owned by hunter", hunterEquipmentID)
		}
		return nil, fmt.Errorf("load hunter equipment: %w", err)
	}
	return &he, nil
}

// FindOwnership returns the ownership row for a catalog item, or nil.
func (t *Tx) FindOwnership(hunterID, equipmentID string) (*models.HunterEquipment, error) {
	var he models.HunterEquipment
	err := t.db.Where("hunter_id = ? AND equipment_id = ?", hunterID, equipmentID).First(&he).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ownership: %w", err)
	}
	return &he, nil
}

func (t *Tx) CreateHunterEquipment(he *models.HunterEquipment) error {
	if err := t.db.Create(he).Error; err != nil {
		return fmt.Errorf("create hunter equipment: %w", err)
	}
	return nil
}

func (t *Tx) SaveHunterEquipment(he *models.HunterEquipment) error {
	if err := t.db.Save(he).Error; err != nil {
		return fmt.Errorf("save hunter equipment: %w", err)
	}
	return nil
}

// UnequipSlot clears IsEquipped on every item of itemType except keepID.
func (t *Tx) UnequipSlot(hunterID string, itemType models.ItemType, keepID string) error {
	err := t.db.Model(&models.HunterEquipment{}).
		Where("hunter_id = ? AND item_type = ? AND id <> ? AND is_equipped = ?", hunterID, itemType, keepID, true).
		Update("is_equipped", false).Error
	if err != nil {
		return fmt.Errorf("unequip slot %s: %w", itemType, err)
	}
	return nil
}

func (t *Tx) EquippedItems(hunterID string) ([]models.EquipmentTemplate, error) {
	return equippedTemplates(t.db, t.catalog, hunterID)
}

func equippedTemplates(db *gorm.DB, catalog *Catalog, hunterID string) ([]models.EquipmentTemplate, error) {
	var owned []models.HunterEquipment
	if err := db.Where("hunter_id = ? AND is_equipped = ?", hunterID, true).Find(&owned).Error; err != nil {
		return nil, fmt.Errorf("load equipped items: %w", err)
	}
	out := make([]models.EquipmentTemplate, 0, len(owned))
	for _, he := range owned {
		tpl, err := catalog.EquipmentTemplate(db, he.EquipmentID)
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	return out, nil
}

// --- Achievements ---

// AchievementProgress returns existing progress rows keyed by achievement id.
func (t *Tx) AchievementProgress(hunterID string, achievementIDs []string) (map[string]*models.HunterAchievement, error) {
	out := make(map[string]*models.HunterAchievement, len(achievementIDs))
	if len(achievementIDs) == 0 {
		return out, nil
	}
	var rows []models.HunterAchievement
	err := t.db.Where("hunter_id = ? AND achievement_id IN ?", hunterID, achievementIDs).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load achievement progress: %w", err)
	}
	for i := range rows {
		out[rows[i].AchievementID] = &rows[i]
	}
	return out, nil
}

func (t *Tx) CreateHunterAchievement(ha *models.HunterAchievement) error {
	if err := t.db.Create(ha).Error; err != nil {
		return fmt.Errorf("create hunter achievement: %w", err)
	}
	return nil
}

func (t *Tx) SaveHunterAchievement(ha *models.HunterAchievement) error {
	if err := t.db.Save(ha).Error; err != nil {
		return fmt.Errorf("save hunter achievement: %w", err)
	}
	return nil
}

func (t *Tx) AchievementsByCategory(categories []models.AchievementCategory) ([]models.AchievementTemplate, error) {
	return t.catalog.AchievementsByCategory(t.db, categories)
}
