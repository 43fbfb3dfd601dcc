package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func setupEquipmentRoutes(r fiber.Router, d *Deps) {
	r.Get("/equipment", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		items, err := d.Equipment.Inventory(c.UserContext(), hunterID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(items)
	})

	// :id is the HunterEquipment (ownership) id
	r.Post("/equipment/:id/equip", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		he, err := d.Equipment.Equip(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(he)
	})

	r.Post("/equipment/:id/unequip", func(c *fiber.Ctx) error {
		hunterID, err := currentHunterID(c, d)
		if err != nil {
			return respondError(c, err)
		}
		he, err := d.Equipment.Unequip(c.UserContext(), hunterID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(he)
	})
}
