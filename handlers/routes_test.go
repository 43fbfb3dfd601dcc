package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hunter-fitness/models"
	"hunter-fitness/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return "https://cdn.test/" + key, nil
}

type testServer struct {
	app  *fiber.App
	db   *gorm.DB
	deps *Deps
	objs *memObjects
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, services.AutoMigrate(db))
	catalog, err := services.NewCatalog(64)
	require.NoError(t, err)
	require.NoError(t, catalog.SeedDefaults(context.Background(), db))

	clock := fixedClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	store := services.NewStore(db, catalog)
	achievements := services.NewAchievementService(store, clock)
	objs := &memObjects{}
	deps := &Deps{
		Hunters:      services.NewHunterService(store, clock),
		Leveling:     services.NewLevelingService(store, clock, achievements),
		Quests:       services.NewQuestService(store, clock, firstPick{}, achievements),
		Dungeons:     services.NewDungeonService(store, clock, achievements),
		Equipment:    services.NewEquipmentService(store, clock, achievements),
		Achievements: achievements,
		Catalog:      catalog,
		Store:        store,
		Clock:        clock,
		Objects:      objs,
	}
	app := fiber.New()
	SetupRoutes(app, deps)
	return &testServer{app: app, db: db, deps: deps, objs: objs}
}

type reqOpt func(*http.Request)

func asUser(id string, roles ...string) reqOpt {
	return func(r *http.Request) {
		r.Header.Set("X-User-ID", id)
		if len(roles) > 0 {
			r.Header.Set("X-User-Roles", strings.Join(roles, ","))
		}
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...reqOpt) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else if len(raw) > 0 && raw[0] == '[' {
		var list []any
		require.NoError(t, json.Unmarshal(raw, &list))
		out["items"] = list
	}
	return resp.StatusCode, out
}

func (s *testServer) register(t *testing.T, user string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/hunter/register", map[string]string{"hunter_name": "sung jinwoo"}, asUser(user))
	require.Equal(t, http.StatusCreated, status)
	return body["id"].(string)
}

func TestSecuredRoutesNeedUser(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/hunter/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-User-ID")
}

func TestRegisterThenProfile(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/hunter/profile", nil, asUser("u1"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, services.CodeHunterNotFound, body["code"])

	id := s.register(t, "u1")

	status, body = s.do(t, http.MethodPost, "/hunter/register", map[string]string{"hunter_name": "other"}, asUser("u1"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "Sung Jinwoo", body["hunter_name"])

	status, body = s.do(t, http.MethodGet, "/hunter/profile", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	hunter := body["hunter"].(map[string]any)
	assert.Equal(t, id, hunter["id"])
	assert.Equal(t, "E", hunter["rank"])
	assert.Equal(t, "D", body["next_rank"])

	status, _ = s.do(t, http.MethodPost, "/hunter/register", map[string]string{"hunter_name": " "}, asUser("u2"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDailyQuestFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "u1")

	status, body := s.do(t, http.MethodGet, "/hunter/quests/daily", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, services.DailyQuestCount)

	first := items[0].(map[string]any)
	assignmentID := first["id"].(string)
	tpl := first["template"].(map[string]any)
	assert.Equal(t, "morning-jog", tpl["code"])

	status, body = s.do(t, http.MethodPost, "/hunter/quests/"+assignmentID+"/complete", nil, asUser("u1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, services.CodeQuestTargetsNotMet, body["code"])

	status, body = s.do(t, http.MethodPost, "/hunter/quests/"+assignmentID+"/progress", map[string]int{"distance": 1200}, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["completed"])

	status, body = s.do(t, http.MethodGet, "/hunter/quests/history", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = s.do(t, http.MethodPost, "/hunter/quests/"+uuid.NewString()+"/start", nil, asUser("u1"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, services.CodeAssignmentNotFound, body["code"])
}

func TestLockedDungeonIsForbidden(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "u1")

	var redGate models.DungeonTemplate
	require.NoError(t, s.db.Where("code = ?", "red-gate").First(&redGate).Error)

	status, body := s.do(t, http.MethodPost, "/hunter/dungeons/"+redGate.ID+"/raids", nil, asUser("u1"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, services.CodeDungeonLocked, body["code"])
	assert.EqualValues(t, 11, body["required_level"])
	assert.Equal(t, "D", body["required_rank"])

	status, body = s.do(t, http.MethodGet, "/hunter/raids/active", nil, asUser("u1"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NO_ACTIVE_RAID", body["code"])
}

func TestRaidRoutes(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "u1")

	var goblin models.DungeonTemplate
	require.NoError(t, s.db.Where("code = ?", "goblin-warren").First(&goblin).Error)

	status, body := s.do(t, http.MethodPost, "/hunter/dungeons/"+goblin.ID+"/raids", nil, asUser("u1"))
	require.Equal(t, http.StatusCreated, status)
	raidID := body["id"].(string)

	status, _ = s.do(t, http.MethodPost, "/hunter/dungeons/"+goblin.ID+"/raids", nil, asUser("u1"))
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/hunter/raids/"+raidID+"/progress", map[string]float64{"progress": 50}, asUser("u1"))
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/hunter/raids/"+raidID+"/complete", map[string]bool{"successful": true}, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	raid := body["raid"].(map[string]any)
	assert.Equal(t, "completed", raid["status"])
	assert.EqualValues(t, 356, raid["xp_earned"])

	status, body = s.do(t, http.MethodPost, "/hunter/dungeons/"+goblin.ID+"/raids", nil, asUser("u1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, services.CodeRaidOnCooldown, body["code"])
	assert.NotEmpty(t, body["available_at"])
}

func TestEquipmentRoutes(t *testing.T) {
	s := newTestServer(t)
	hunterID := s.register(t, "u1")

	var dagger models.EquipmentTemplate
	require.NoError(t, s.db.Where("code = ?", "training-dagger").First(&dagger).Error)
	_, _, err := s.deps.Equipment.Unlock(context.Background(), hunterID, dagger.ID)
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/hunter/equipment", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	ownedID := items[0].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodPost, "/hunter/equipment/"+ownedID+"/equip", nil, asUser("u1"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_equipped"])

	status, body = s.do(t, http.MethodPost, "/hunter/equipment/"+ownedID+"/equip", nil, asUser("u1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, services.CodeEquipmentEquipped, body["code"])
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	hunterID := s.register(t, "u1")

	grant := map[string]any{"hunter_id": hunterID, "xp": 250, "reason": "event"}
	status, _ := s.do(t, http.MethodPost, "/s/admin/xp/grant", grant, asUser("ops"))
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/s/admin/xp/grant", grant, asUser("ops", "admin"))
	require.Equal(t, http.StatusOK, status)
	result := body["result"].(map[string]any)
	assert.EqualValues(t, 3, result["new_level"])
	assert.Equal(t, true, result["leveled_up"])

	var n int64
	require.NoError(t, s.db.Model(&models.XPEvent{}).Where("hunter_id = ? AND source = ?", hunterID, "admin:event").Count(&n).Error)
	assert.Equal(t, int64(1), n)

	status, body = s.do(t, http.MethodPost, "/s/admin/xp/grant", map[string]any{"hunter_id": hunterID, "xp": -5}, asUser("ops", "admin"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.CodeNegativeXP, body["code"])

	status, body = s.do(t, http.MethodPost, "/s/admin/achievements/events",
		map[string]any{"hunter_id": hunterID, "event_type": "nope", "increment": 1}, asUser("ops", "admin"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, services.CodeUnknownEvent, body["code"])
}

func TestAdminIconUpload(t *testing.T) {
	s := newTestServer(t)

	var dagger models.EquipmentTemplate
	require.NoError(t, s.db.Where("code = ?", "training-dagger").First(&dagger).Error)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("icon", "Dagger.PNG")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/s/admin/equipment/"+dagger.ID+"/icon", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	asUser("ops", "admin")(req)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	key := "equipment/" + dagger.ID + "/training-dagger.png"
	assert.Equal(t, []byte("png-bytes"), s.objs.objects[key])

	var stored models.EquipmentTemplate
	require.NoError(t, s.db.First(&stored, "id = ?", dagger.ID).Error)
	assert.Equal(t, "https://cdn.test/"+key, stored.IconURL)
}

func TestLeaderboardIsOpen(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "u1")

	status, body := s.do(t, http.MethodGet, "/leaderboard", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)
}

func TestXPFramesFollowTheLedger(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	h, _, err := s.deps.Hunters.RegisterHunter(ctx, "u1", "Jinwoo")
	require.NoError(t, err)

	start, err := s.deps.Leveling.LatestXPCursor(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, start.ID)

	// the fixed clock gives all three rows the same timestamp
	for i := 0; i < 3; i++ {
		_, err := s.deps.Leveling.AwardXP(ctx, h.ID, 10, "admin:stream")
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	cursor, err := writeXPFrames(ctx, w, s.deps.Leveling, h.ID, start)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	first := frames[0]
	require.True(t, strings.HasPrefix(first, "event: xp\ndata: "), first)
	var ev models.XPEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(first, "event: xp\ndata: ")), &ev))
	assert.Equal(t, h.ID, ev.HunterID)
	assert.Equal(t, int64(10), ev.Amount)
	assert.Equal(t, "admin:stream", ev.Source)

	latest, err := s.deps.Leveling.LatestXPCursor(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, cursor.ID)

	// nothing new: a keepalive comment and the cursor stays put
	buf.Reset()
	again, err := writeXPFrames(ctx, w, s.deps.Leveling, h.ID, cursor)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	assert.Equal(t, ":\n\n", buf.String())
	assert.Equal(t, cursor, again)
}
