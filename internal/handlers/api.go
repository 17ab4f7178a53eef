// Package handlers serves the dashboard and upload API over fiber.
package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/dashboard"
	"github.com/seuros/kohort/internal/ingest"
	"github.com/seuros/kohort/internal/middleware"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config wires the API to its services.
type Config struct {
	Dashboards   *dashboard.Service
	Ingest       *ingest.Service
	Store        records.Store
	BatchSource  ingest.BatchSource
	DefaultRange models.DateRange
	APIKeys      []string
	Version      string
	// Realtime is mounted at /ws when set.
	Realtime fiber.Handler
}

// API holds the route handlers.
type API struct {
	dashboards   *dashboard.Service
	ingest       *ingest.Service
	store        records.Store
	batch        ingest.BatchSource
	defaultRange models.DateRange
	apiKeys      []string
	version      string
	realtime     fiber.Handler
}

// NewAPI builds the handlers from cfg.
func NewAPI(cfg Config) *API {
	rng := cfg.DefaultRange
	if rng == "" {
		rng = models.Range30d
	}
	return &API{
		dashboards:   cfg.Dashboards,
		ingest:       cfg.Ingest,
		store:        cfg.Store,
		batch:        cfg.BatchSource,
		defaultRange: rng,
		apiKeys:      cfg.APIKeys,
		version:      cfg.Version,
		realtime:     cfg.Realtime,
	}
}

// Register mounts every route on app.
func (a *API) Register(app *fiber.App) {
	app.Get("/health", a.HandleHealth)
	app.Get("/up", a.HandleUp)
	app.Get("/api/version", a.HandleVersion)

	api := app.Group("/api")
	api.Get("/dashboard", a.HandleDashboard)
	api.Get("/funnel", a.HandleFunnel)
	api.Get("/cohorts", a.HandleCohorts)
	api.Get("/ltv", a.HandleLTV)
	api.Get("/kpis", a.HandleKPIs)
	api.Get("/revenue", a.HandleRevenue)
	api.Get("/customers", a.HandleCustomers)
	api.Get("/uploads", a.HandleUploads)

	requireKey := middleware.APIKey(a.apiKeys)
	api.Post("/customers/batch", requireKey, a.HandleCustomerBatch)
	api.Post("/uploads/fetch", requireKey, a.HandleFetchUpload)

	if a.realtime != nil {
		app.Get("/ws", requireUpgrade, a.realtime)
	}
}
