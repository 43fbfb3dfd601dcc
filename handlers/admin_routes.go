package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"hunter-fitness/services"
	"hunter-fitness/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
)

func setupAdminRoutes(r fiber.Router, d *Deps) {
	r.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			HunterID string `json:"hunter_id"`
			XP       int64  `json:"xp"`
			Reason   string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := d.Leveling.AwardXP(c.UserContext(), req.HunterID, req.XP, "admin:"+req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":   "XP granted successfully",
			"hunter_id": req.HunterID,
			"result":    res,
		})
	})

	r.Post("/equipment/unlock", func(c *fiber.Ctx) error {
		var req struct {
			HunterID    string `json:"hunter_id"`
			EquipmentID string `json:"equipment_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		he, created, err := d.Equipment.Unlock(c.UserContext(), req.HunterID, req.EquipmentID)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(he)
	})

	r.Post("/achievements/events", func(c *fiber.Ctx) error {
		var req struct {
			HunterID  string `json:"hunter_id"`
			EventType string `json:"event_type"`
			Increment int    `json:"increment"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		unlocked, err := d.Achievements.RecordEvent(c.UserContext(), req.HunterID, services.EventType(req.EventType), req.Increment)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"unlocked": unlocked})
	})

	r.Post("/equipment/:id/icon", func(c *fiber.Ctx) error {
		if d.Objects == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "object storage is not configured"})
		}
		tpl, err := d.Catalog.EquipmentTemplate(d.Store.DB.WithContext(c.UserContext()), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		file, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required", "cause": err.Error()})
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		key := fmt.Sprintf("equipment/%s/%s%s", tpl.ID, slug.Make(tpl.Name), ext)
		url, err := storage.PutFile(c.UserContext(), d.Objects, file, key)
		if err != nil {
			return respondError(c, err)
		}
		if err := d.Catalog.SetEquipmentIcon(c.UserContext(), d.Store.DB, tpl.ID, url); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"equipment_id": tpl.ID, "icon_url": url})
	})
}
