package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// HandleFetchUpload pulls the configured batch source into the store.
// POST /api/uploads/fetch
func (a *API) HandleFetchUpload(c fiber.Ctx) error {
	if a.batch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No batch source configured"})
	}
	report, err := a.ingest.Upload(c.Context(), a.batch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleUploads returns the upload history, newest first.
// GET /api/uploads?limit=20
func (a *API) HandleUploads(c fiber.Ctx) error {
	limit := min(max(fiber.Query[int](c, "limit", 20), 1), 100)

	uploads, err := a.ingest.History().List(c.Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"uploads": uploads})
}
