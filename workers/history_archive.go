package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/models"
	"hunter-fitness/services"
	"hunter-fitness/storage"

	"gorm.io/gorm"
)

// HistoryArchiver copies one day of finished quests and raids to object storage.
type HistoryArchiver struct {
	DB    *gorm.DB
	Store storage.ObjectStore
	Clock services.Clock
}

type historyArchive struct {
	Date   string                `json:"date"`
	Quests []models.QuestHistory `json:"quests"`
	Raids  []models.DungeonRaid  `json:"raids"`
}

// ArchiveKey is where the archive for a date lives in the bucket.
func ArchiveKey(date string) string {
	return fmt.Sprintf("archives/%s/history.json", date)
}

// ArchiveYesterday archives the UTC day before now.
func (a *HistoryArchiver) ArchiveYesterday(ctx context.Context) (string, error) {
	return a.ArchiveDay(ctx, a.Clock.Now().AddDate(0, 0, -1))
}

// ArchiveDay uploads the quests and raids finished on day's UTC date and returns the
// object URL.
func (a *HistoryArchiver) ArchiveDay(ctx context.Context, day time.Time) (string, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	payload := historyArchive{Date: start.Format(services.DateLayout)}

	db := a.DB.WithContext(ctx)
	if err := db.Where("completed_at >= ? AND completed_at < ?", start, end).
		Order("completed_at ASC").
		Find(&payload.Quests).Error; err != nil {
		return "", fmt.Errorf("load quest history: %w", err)
	}
	if err := db.Where("completed_at >= ? AND completed_at < ?", start, end).
		Order("completed_at ASC").
		Find(&payload.Raids).Error; err != nil {
		return "", fmt.Errorf("load raids: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	url, err := a.Store.Put(ctx, ArchiveKey(payload.Date), body, "application/json")
	if err != nil {
		return "", err
	}
	logger.Info().
		Str("date", payload.Date).
		Int("quests", len(payload.Quests)).
		Int("raids", len(payload.Raids)).
		Str("url", url).
		Msg("📦 [ARCHIVE] history uploaded")
	return url, nil
}
