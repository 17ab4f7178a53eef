package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/records"
)

// HandleHealth reports that the process is serving.
func (a *API) HandleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "kohort",
	})
}

// HandleUp returns 200 when the record store answers.
func (a *API) HandleUp(c fiber.Ctx) error {
	pinger, ok := a.store.(records.Pinger)
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("store unavailable")
	}
	return c.SendStatus(fiber.StatusOK)
}

// HandleVersion returns the build version.
func (a *API) HandleVersion(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": a.version,
	})
}

func requireUpgrade(c fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
