package handlers

import (
	"errors"
	"strconv"

	"hunter-fitness/logger"
	"hunter-fitness/middleware"
	"hunter-fitness/services"
	"hunter-fitness/storage"

	"github.com/gofiber/fiber/v2"
)

// Deps is everything the routes call into.
type Deps struct {
	Hunters      *services.HunterService
	Leveling     *services.LevelingService
	Quests       *services.QuestService
	Dungeons     *services.DungeonService
	Equipment    *services.EquipmentService
	Achievements *services.AchievementService
	Catalog      *services.Catalog
	Store        *services.Store
	Clock        services.Clock
	Objects      storage.ObjectStore // nil when object storage is not configured
}

// SetupRoutes mounts every route. The gateway forwards /api/v1/hunters/... here with
// the prefix stripped.
func SetupRoutes(app *fiber.App, d *Deps) {
	// 🔓 Gateway-only, no user context
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		board, err := d.Hunters.Leaderboard(c.UserContext(), limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(board)
	})

	// 🔐 Secured routes, require user context
	secured := app.Group("/hunter", middleware.UserContextMiddleware())
	setupHunterRoutes(secured, d)
	setupQuestRoutes(secured, d)
	setupDungeonRoutes(secured, d)
	setupEquipmentRoutes(secured, d)

	// 🛡️ Admin
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))
	setupAdminRoutes(admin, d)
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindInvalidState:
		return fiber.StatusConflict
	case services.KindIneligibleAccess:
		return fiber.StatusForbidden
	case services.KindValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError maps domain rejections to 4xx and everything else to 500.
func respondError(c *fiber.Ctx, err error) error {
	var de *services.DomainError
	if errors.As(err, &de) {
		body := fiber.Map{
			"error": de.Message,
			"code":  de.Code,
		}
		if de.Kind == services.KindIneligibleAccess {
			body["required_level"] = de.RequiredLevel
			body["required_rank"] = de.RequiredRank
		}
		if de.AvailableAt != nil {
			body["available_at"] = de.AvailableAt
		}
		return c.Status(statusFor(de.Kind)).JSON(body)
	}

	logger.Error().Err(err).Str("path", c.Path()).Msg("❌ request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"cause": err.Error(),
	})
}

// currentHunterID resolves the gateway user to its hunter.
func currentHunterID(c *fiber.Ctx, d *Deps) (string, error) {
	h, err := d.Hunters.HunterByExternalID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return "", err
	}
	return h.ID, nil
}

func pageParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", "20"))
	return page, size
}
