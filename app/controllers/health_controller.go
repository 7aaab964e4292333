package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/cache"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/database"
)

// HandleHealth reports whether the database and Redis answer.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := fiber.Map{"database": "ok", "cache": "ok"}
	healthy := true

	if db := database.GetDB(); db == nil {
		status["database"] = "not initialized"
		healthy = false
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unreachable"
		healthy = false
	}

	if err := cache.GetClient().Ping(ctx).Err(); err != nil {
		status["cache"] = "unreachable"
		healthy = false
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}
