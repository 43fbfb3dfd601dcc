package handlers

import (
	"hunter-fitness/services"

	"github.com/gofiber/fiber/v2"
)

func setupQuestRoutes(r fiber.Router, d *Deps) {
	quests := r.Group("/quests")

	quests.Get("/daily", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		date := c.Query("date", d.Clock.Now().Format(services.DateLayout))
		// First visit of the day generates the set; later visits get it back unchanged.
		if _, err := d.Quests.GenerateDailyQuests(c.UserContext(), hunterID, date, false); err != nil {
			return respondError(c, err)
		}
		list, err := d.Quests.DailyQuests(c.UserContext(), hunterID, date)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	quests.Post("/daily/regenerate", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		date := c.Query("date", d.Clock.Now().Format(services.DateLayout))
		if _, err := d.Quests.GenerateDailyQuests(c.UserContext(), hunterID, date, true); err != nil {
			return respondError(c, err)
		}
		list, err := d.Quests.DailyQuests(c.UserContext(), hunterID, date)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	quests.Get("/history", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		page, size := pageParams(c)
		items, total, err := d.Quests.QuestHistory(c.UserContext(), hunterID, page, size)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"items": items, "total": total, "page": page, "size": size})
	})

	quests.Post("/:id/start", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		a, err := d.Quests.StartQuest(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(a)
	})

	quests.Post("/:id/progress", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		var req services.QuestProgressUpdate
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := d.Quests.UpdateQuestProgress(c.UserContext(), hunterID, c.Params("id"), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	quests.Post("/:id/complete", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		var req struct {
			PerfectExecution bool `json:"perfect_execution"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, err)
			}
		}
		res, err := d.Quests.CompleteQuest(c.UserContext(), hunterID, c.Params("id"), req.PerfectExecution)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
