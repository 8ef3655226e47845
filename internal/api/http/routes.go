package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/kp-index-aggregation/internal/common"
	"github.com/i474232898/kp-index-aggregation/internal/kp"
	"github.com/i474232898/kp-index-aggregation/internal/widget"
)

var validate = validator.New()

// WidgetTrigger enqueues a one-shot widget refresh.
type WidgetTrigger interface {
	TriggerWidgetRefresh() error
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Coordinator *kp.Coordinator
	Search      *kp.LocationSearch
	Card        *widget.Writer
	Jobs        WidgetTrigger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")
	coord := deps.Coordinator

	v1.Get("/kp/snapshot", func(c *fiber.Ctx) error {
		return c.JSON(coord.Snapshot())
	})

	v1.Get("/kp/current", func(c *fiber.Ctx) error {
		snap := coord.Snapshot()
		if snap.Current == nil {
			return fiber.NewError(fiber.StatusNotFound, "no current Kp value yet")
		}
		return c.JSON(currentView(*snap.Current, snap.Location))
	})

	v1.Get("/kp/days", func(c *fiber.Ctx) error {
		var q daysQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap := coord.Snapshot()
		reference := q.Reference
		if reference == "" {
			reference = snap.Today
		}
		var opts []kp.GroupOption
		if !q.All {
			opts = append(opts, kp.WithReference(reference), kp.WithWindow(q.DaysBack, q.DaysForward))
		}
		days := kp.GroupByLocalDay(snap.Forecast, snap.Location.TimeZoneID, opts...)

		return c.JSON(fiber.Map{
			"location":  snap.Location,
			"reference": reference,
			"days":      days,
		})
	})

	v1.Get("/kp/month", func(c *fiber.Ctx) error {
		snap := coord.Snapshot()
		return c.JSON(fiber.Map{
			"location": snap.Location,
			"today":    snap.Today,
			"days":     snap.Month,
		})
	})

	v1.Post("/kp/refresh", func(c *fiber.Ctx) error {
		result := coord.Refresh(c.UserContext())
		snap := coord.Snapshot()
		if !result.OK() {
			code := fiber.StatusBadGateway
			if result.Outcome == kp.Retryable {
				code = fiber.StatusServiceUnavailable
			}
			return fiber.NewError(code, snap.Error)
		}
		return c.JSON(snap)
	})

	v1.Get("/location", func(c *fiber.Ctx) error {
		return c.JSON(coord.Snapshot().Location)
	})

	v1.Put("/location", func(c *fiber.Ctx) error {
		var loc kp.Location
		if err := c.BodyParser(&loc); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid location body")
		}
		if err := validate.Struct(loc); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := coord.OnLocationChanged(c.UserContext(), loc)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save location")
		}
		return c.JSON(snap)
	})

	v1.Get("/locations/search", func(c *fiber.Ctx) error {
		return c.JSON(deps.Search.Search(c.UserContext(), c.Query("q")))
	})

	v1.Delete("/locations/search", func(c *fiber.Ctx) error {
		return c.JSON(deps.Search.Clear())
	})

	v1.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(coord.Snapshot().Prefs)
	})

	v1.Patch("/settings", func(c *fiber.Ctx) error {
		var req settingsPatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, err := coord.UpdatePreferences(c.UserContext(), req.toPatch())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save settings")
		}
		return c.JSON(snap.Prefs)
	})

	v1.Get("/widget/card", func(c *fiber.Ctx) error {
		zone := kp.LoadZone(coord.Snapshot().Location.TimeZoneID)
		view, err := deps.Card.Load(c.UserContext(), zone)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load widget card")
		}
		return c.JSON(view)
	})

	v1.Post("/events/unlock", func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "background jobs disabled")
		}
		if err := deps.Jobs.TriggerWidgetRefresh(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to schedule widget refresh")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"scheduled": true})
	})
}

// currentView is the current record plus its display fields.
func currentView(r kp.Record, loc kp.Location) fiber.Map {
	zone := kp.LoadZone(loc.TimeZoneID)
	category := kp.CategoryOf(r.Kp)
	return fiber.Map{
		"record":    r,
		"kp":        common.FormatKp(r.Kp),
		"category":  category.String(),
		"level":     int(category),
		"scale":     r.Scale.Label(),
		"localTime": kp.FormatLocal(r, zone, "02-01-2006 15:04"),
	}
}

// daysQuery holds query parameters for the bucketed days endpoint.
type daysQuery struct {
	Reference   string `validate:"omitempty,datetime=2006-01-02"`
	DaysBack    int    `validate:"gte=0,lte=31"`
	DaysForward int    `validate:"gte=0,lte=31"`
	All         bool
}

func (q *daysQuery) bind(c *fiber.Ctx) error {
	q.Reference = c.Query("reference")
	q.DaysBack = kp.DefaultDaysBack
	q.DaysForward = kp.DefaultDaysForward

	var err error
	if v := c.Query("daysBack"); v != "" {
		if q.DaysBack, err = strconv.Atoi(v); err != nil {
			return errors.New("daysBack must be an integer")
		}
	}
	if v := c.Query("daysForward"); v != "" {
		if q.DaysForward, err = strconv.Atoi(v); err != nil {
			return errors.New("daysForward must be an integer")
		}
	}
	if v := c.Query("all"); v != "" {
		if q.All, err = strconv.ParseBool(v); err != nil {
			return errors.New("all must be a boolean")
		}
	}
	return nil
}

// settingsPatch is the PATCH /settings body. Omitted fields are unchanged.
type settingsPatch struct {
	Theme                 *string `json:"theme" validate:"omitempty,oneof=system light dark"`
	RefreshMode           *string `json:"refreshMode" validate:"omitempty,oneof=on_open background"`
	NotificationsEnabled  *bool   `json:"notificationsEnabled"`
	NotificationThreshold *int    `json:"notificationThreshold" validate:"omitempty,min=1,max=9"`
}

func (s settingsPatch) toPatch() kp.PreferencesPatch {
	var patch kp.PreferencesPatch
	if s.Theme != nil {
		theme := kp.Theme(*s.Theme)
		patch.Theme = &theme
	}
	if s.RefreshMode != nil {
		mode := kp.RefreshMode(*s.RefreshMode)
		patch.RefreshMode = &mode
	}
	patch.NotificationsEnabled = s.NotificationsEnabled
	patch.NotificationThreshold = s.NotificationThreshold
	return patch
}
