package handlers

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/kohort/internal/etl"
	"github.com/seuros/kohort/internal/models"
)

// BatchRequest is the body of POST /api/customers/batch. Records are not
// validated one by one; malformed records come back as rejections.
type BatchRequest struct {
	Source  string       `json:"source" validate:"omitempty,max=200"`
	Records []etl.Record `json:"records" validate:"required,max=5000"`
}

// HandleCustomers lists stored customers.
// GET /api/customers?page=1&per=10&sort_by=total_spend&sort_order=desc&status=Active&q=ana
func (a *API) HandleCustomers(c fiber.Ctx) error {
	q := ParsePageQuery(c, customerSortColumns)

	var status models.CustomerStatus
	if raw := c.Query("status"); raw != "" {
		parsed, ok := models.ParseStatus(raw)
		if !ok {
			return badRequest(c, "Invalid status")
		}
		status = parsed
	}

	customers, err := a.store.Customers(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	filtered := filterCustomers(customers, status, c.Query("q"))
	sortCustomers(filtered, q.Sort, q.Order)
	return c.JSON(Paginate(filtered, q))
}

// HandleCustomerBatch uploads a posted batch of customer records.
// POST /api/customers/batch
func (a *API) HandleCustomerBatch(c fiber.Ctx) error {
	var req BatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON payload")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	report, err := a.ingest.Ingest(c.Context(), source, req.Records)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func filterCustomers(customers []models.Customer, status models.CustomerStatus, query string) []models.Customer {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Customer, 0, len(customers))
	for _, cust := range customers {
		if status != "" && cust.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(cust.Name), query) &&
			!strings.Contains(cust.Key(), query) {
			continue
		}
		out = append(out, cust)
	}
	return out
}

func sortCustomers(customers []models.Customer, sortBy string, order SortDirection) {
	compare := func(a, b models.Customer) int {
		switch sortBy {
		case "name":
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "email":
			return cmp.Compare(a.Key(), b.Key())
		case "total_spend":
			return a.TotalSpend.Cmp(b.TotalSpend)
		case "last_seen":
			return a.LastSeen.Compare(b.LastSeen)
		default:
			return a.JoinDate.Compare(b.JoinDate)
		}
	}
	slices.SortStableFunc(customers, func(a, b models.Customer) int {
		if order == SortAsc {
			return compare(a, b)
		}
		return compare(b, a)
	})
}
