package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/pm-monitor/internal/monitor"
	"github.com/i474232898/pm-monitor/internal/store"
)

var validate = validator.New()

// ReportReader is the read side of the report store.
type ReportReader interface {
	GetLatest() (monitor.Report, error)
	GetRange(from, to time.Time) ([]monitor.Report, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reports ReportReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/current", func(c *fiber.Ctx) error {
		report, err := latest(reports)
		if err != nil {
			return err
		}
		return c.JSON(report.Current)
	})

	v1.Get("/annual/:metric", func(c *fiber.Ctx) error {
		req := annualQuery{Metric: c.Params("metric")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "metric must be one of: pm25, temperature")
		}

		report, err := latest(reports)
		if err != nil {
			return err
		}
		if req.Metric == "pm25" {
			return c.JSON(report.AnnualPM25)
		}
		return c.JSON(report.AnnualTemp)
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 200")
		}

		report, err := latest(reports)
		if err != nil {
			return err
		}
		history := report.History
		if req.Limit != nil && *req.Limit < len(history) {
			history = history[len(history)-*req.Limit:]
		}
		return c.JSON(history)
	})

	v1.Get("/runs", func(c *fiber.Ctx) error {
		var req runsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := reports.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch runs")
		}

		return c.JSON(fiber.Map{
			"from": req.From,
			"to":   req.To,
			"runs": runs,
		})
	})
}

func latest(reports ReportReader) (monitor.Report, error) {
	report, err := reports.GetLatest()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return monitor.Report{}, fiber.NewError(fiber.StatusNotFound, "no monitoring run has completed yet")
		}
		return monitor.Report{}, fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest report")
	}
	return report, nil
}

type annualQuery struct {
	Metric string `validate:"oneof=pm25 temperature"`
}

// historyQuery holds query parameters for the history endpoint. A nil Limit
// returns the whole ledger.
type historyQuery struct {
	Limit *int `validate:"omitnil,min=1,max=200"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	s := c.Query("limit")
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	h.Limit = &n
	return nil
}

// runsQuery holds query parameters for the runs endpoint.
type runsQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (r *runsQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	r.From = from
	r.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
