package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hunter-fitness/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// firstPick always picks index 0 so quest generation is predictable.
type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

type testEnv struct {
	ctx          context.Context
	db           *gorm.DB
	clock        *testClock
	store        *Store
	catalog      *Catalog
	hunters      *HunterService
	leveling     *LevelingService
	quests       *QuestService
	dungeons     *DungeonService
	equipment    *EquipmentService
	achievements *AchievementService
}

// newTestEnv opens a private in-memory SQLite database with the default catalog seeded.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	catalog, err := NewCatalog(64)
	require.NoError(t, err)
	require.NoError(t, catalog.SeedDefaults(context.Background(), db))

	clock := &testClock{now: testEpoch}
	store := NewStore(db, catalog)
	achievements := NewAchievementService(store, clock)
	return &testEnv{
		ctx:          context.Background(),
		db:           db,
		clock:        clock,
		store:        store,
		catalog:      catalog,
		hunters:      NewHunterService(store, clock),
		leveling:     NewLevelingService(store, clock, achievements),
		quests:       NewQuestService(store, clock, firstPick{}, achievements),
		dungeons:     NewDungeonService(store, clock, achievements),
		equipment:    NewEquipmentService(store, clock, achievements),
		achievements: achievements,
	}
}

func (e *testEnv) newHunter(t *testing.T, name string) *models.Hunter {
	t.Helper()
	h, created, err := e.hunters.RegisterHunter(e.ctx, uuid.NewString(), name)
	require.NoError(t, err)
	require.True(t, created)
	return h
}

func (e *testEnv) reload(t *testing.T, hunterID string) *models.Hunter {
	t.Helper()
	h, err := e.store.LoadHunter(e.ctx, hunterID)
	require.NoError(t, err)
	return h
}

// setLevel moves a hunter straight to a level (and its rank) for gate tests.
func (e *testEnv) setLevel(t *testing.T, hunterID string, level int) {
	t.Helper()
	err := e.db.Model(&models.Hunter{}).Where("id = ?", hunterID).
		Updates(map[string]any{"level": level, "rank": RankForLevel(level)}).Error
	require.NoError(t, err)
}

func (e *testEnv) questTemplate(t *testing.T, code string) models.QuestTemplate {
	t.Helper()
	var tpl models.QuestTemplate
	require.NoError(t, e.db.Where("code = ?", code).First(&tpl).Error)
	return tpl
}

func (e *testEnv) dungeon(t *testing.T, code string) models.DungeonTemplate {
	t.Helper()
	var tpl models.DungeonTemplate
	require.NoError(t, e.db.Where("code = ?", code).First(&tpl).Error)
	return tpl
}

func (e *testEnv) equipmentTemplate(t *testing.T, code string) models.EquipmentTemplate {
	t.Helper()
	var tpl models.EquipmentTemplate
	require.NoError(t, e.db.Where("code = ?", code).First(&tpl).Error)
	return tpl
}

func (e *testEnv) achievementTemplate(t *testing.T, code string) models.AchievementTemplate {
	t.Helper()
	var tpl models.AchievementTemplate
	require.NoError(t, e.db.Where("code = ?", code).First(&tpl).Error)
	return tpl
}

// assign hands the hunter one quest for today without going through generation.
func (e *testEnv) assign(t *testing.T, hunterID, code string) *models.QuestAssignment {
	t.Helper()
	tpl := e.questTemplate(t, code)
	a := &models.QuestAssignment{
		ID:              uuid.NewString(),
		HunterID:        hunterID,
		QuestTemplateID: tpl.ID,
		QuestDate:       e.clock.Now().Format(DateLayout),
		Status:          models.QuestStatusAssigned,
		BonusMultiplier: 1,
	}
	require.NoError(t, e.db.Create(a).Error)
	return a
}

func (e *testEnv) progressRow(t *testing.T, hunterID, achievementCode string) *models.HunterAchievement {
	t.Helper()
	tpl := e.achievementTemplate(t, achievementCode)
	var row models.HunterAchievement
	err := e.db.Where("hunter_id = ? AND achievement_id = ?", hunterID, tpl.ID).Limit(1).Find(&row).Error
	require.NoError(t, err)
	if row.ID == "" {
		return nil
	}
	return &row
}

func (e *testEnv) countXPEvents(t *testing.T, hunterID, source string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.XPEvent{}).Where("hunter_id = ? AND source = ?", hunterID, source).Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) *DomainError {
	t.Helper()
	require.Error(t, err)
	var de *DomainError
	require.Truef(t, errors.As(err, &de), "want *DomainError, got %T: %v", err, err)
	require.Equal(t, kind, de.Kind)
	if code != "" {
		require.Equal(t, code, de.Code)
	}
	return de
}
