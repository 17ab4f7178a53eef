package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/ingest"
	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

// respondError maps service errors onto status codes.
func respondError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidRange):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ingest.ErrUploadBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, records.ErrFetch):
		logging.Component("api").Warn("record fetch failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "Records are temporarily unavailable",
			"retryable": true,
		})
	default:
		logging.Component("api").Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// validationMessage returns the first failing field as a readable message.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return formatValidationError(validationErrors[0]).Error()
	}
	return "Invalid request"
}

func formatValidationError(fe validator.FieldError) error {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		return fmt.Errorf("%s exceeds maximum of %s", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}
