package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/middleware"
	"hunter-fitness/services"

	"github.com/gofiber/fiber/v2"
)

// streamPollInterval is how often the progress stream checks for new XP events.
var streamPollInterval = 2 * time.Second

const streamBatchSize = 100

func setupHunterRoutes(r fiber.Router, d *Deps) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req struct {
			HunterName string `json:"hunter_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		h, created, err := d.Hunters.RegisterHunter(c.UserContext(), middleware.UserID(c), req.HunterName)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(h)
	})

	r.Get("/profile", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		profile, err := d.Hunters.Profile(c.UserContext(), hunterID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	r.Get("/achievements", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		list, err := d.Achievements.HunterAchievements(c.UserContext(), hunterID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Get("/progress/stream", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		return streamProgress(c, d, hunterID)
	})
}

// streamProgress pushes every new XP event for the hunter as an SSE "xp" event.
func streamProgress(c *fiber.Ctx, d *Deps, hunterID string) error {
	ctx := c.UserContext()
	cursor, err := d.Leveling.LatestXPCursor(ctx, hunterID)
	if err != nil {
		return respondError(c, err)
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				next, err := writeXPFrames(ctx, w, d.Leveling, hunterID, cursor)
				if err != nil {
					logger.Warn().Err(err).Str("hunter_id", hunterID).Msg("SSE query error")
					continue
				}
				cursor = next
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

// writeXPFrames writes one "xp" frame per ledger row after cursor, or a keepalive comment
// when there is nothing new, and returns the advanced cursor. The caller flushes.
func writeXPFrames(ctx context.Context, w *bufio.Writer, leveling *services.LevelingService, hunterID string, cursor services.XPCursor) (services.XPCursor, error) {
	events, err := leveling.XPEventsSince(ctx, hunterID, cursor, streamBatchSize)
	if err != nil {
		return cursor, err
	}
	if len(events) == 0 {
		_, err = w.WriteString(":\n\n")
		return cursor, err
	}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return cursor, fmt.Errorf("encode xp event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "event: xp\ndata: %s\n\n", payload); err != nil {
			return cursor, err
		}
		cursor = services.CursorAt(ev)
	}
	return cursor, nil
}
