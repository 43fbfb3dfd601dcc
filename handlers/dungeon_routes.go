package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func setupDungeonRoutes(r fiber.Router, d *Deps) {
	r.Get("/dungeons", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		list, err := d.Dungeons.AvailableDungeons(c.UserContext(), hunterID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Get("/dungeons/:id/success-rate", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		rate, err := d.Dungeons.EstimateSuccessRate(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"dungeon_id": c.Params("id"), "success_rate": rate})
	})

	r.Post("/dungeons/:id/raids", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		raid, err := d.Dungeons.StartRaid(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(raid)
	})

	r.Get("/raids/active", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		raid, err := d.Dungeons.ActiveRaid(c.UserContext(), hunterID)
		if err != nil {
			return respondError(c, err)
		}
		if raid == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active raid", "code": "NO_ACTIVE_RAID"})
		}
		return c.JSON(raid)
	})

	r.Get("/raids/history", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		page, size := pageParams(c)
		items, total, err := d.Dungeons.RaidHistory(c.UserContext(), hunterID, page, size)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"items": items, "total": total, "page": page, "size": size})
	})

	r.Post("/raids/:id/progress", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		var req struct {
			Progress float64 `json:"progress"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		raid, err := d.Dungeons.UpdateRaidProgress(c.UserContext(), hunterID, c.Params("id"), req.Progress)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(raid)
	})

	r.Post("/raids/:id/complete", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		var req struct {
			Successful bool `json:"successful"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := d.Dungeons.CompleteRaid(c.UserContext(), hunterID, c.Params("id"), req.Successful)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Post("/raids/:id/abandon", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		raid, err := d.Dungeons.AbandonRaid(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(raid)
	})
}
