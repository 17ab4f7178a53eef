package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/analytics"
	"github.com/seuros/kohort/internal/models"
)

// dashboardFor returns the current snapshot for the request's range.
func (a *API) dashboardFor(c fiber.Ctx) (*analytics.Dashboard, error) {
	rng, err := models.ParseDateRange(c.Query("range", string(a.defaultRange)))
	if err != nil {
		return nil, err
	}
	return a.dashboards.Snapshot(c.Context(), rng)
}

// HandleDashboard returns the full snapshot.
// GET /api/dashboard?range=30d
func (a *API) HandleDashboard(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(d)
}

// HandleFunnel returns funnel stages with stage-to-stage transitions.
func (a *API) HandleFunnel(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"range":       d.Range,
		"funnel":      d.Funnel,
		"transitions": d.Transitions,
	})
}

// HandleCohorts returns monthly retention cohorts.
func (a *API) HandleCohorts(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"range":   d.Range,
		"cohorts": d.Cohorts,
	})
}

// HandleLTV returns the average lifetime value and its histogram.
func (a *API) HandleLTV(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"range":   d.Range,
		"average": d.LTV.Average,
		"buckets": d.LTV.Buckets,
	})
}

// HandleKPIs returns headline numbers with the data quality report.
func (a *API) HandleKPIs(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"range":   d.Range,
		"kpis":    d.KPIs,
		"quality": d.Quality,
	})
}

// HandleRevenue returns monthly revenue and expenses.
func (a *API) HandleRevenue(c fiber.Ctx) error {
	d, err := a.dashboardFor(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"range":  d.Range,
		"months": d.RevenueExpense,
	})
}
