package scheduling

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinicbook/internal/platform/auth"
	"github.com/clinicbook/clinicbook/pkg/pagination"
)

const (
	dateLayout         = "2006-01-02"
	defaultBlockWindow = 30 * 24 * time.Hour
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every clinic role
	readGroup := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RolePhysician, auth.RolePatient))
	readGroup.GET("/practitioners/:id/free-slots", h.FreeSlots)
	readGroup.GET("/reservations/:id", h.GetReservation)
	readGroup.GET("/reservations", h.ListReservations)

	// Booking – front desk and patients
	bookGroup := api.Group("", auth.RequireRole(auth.RoleRegistrar, auth.RolePatient))
	bookGroup.POST("/reservations", h.Hold)
	bookGroup.POST("/reservations/:id/confirm", h.Confirm)
	bookGroup.POST("/reservations/:id/cancel", h.Cancel)
	bookGroup.DELETE("/reservations/:id", h.Cancel)

	// Encounter recording
	encounterGroup := api.Group("", auth.RequireRole(auth.RolePhysician))
	encounterGroup.POST("/reservations/:id/complete", h.Complete)

	// Calendar administration – practitioners and front desk
	calendarGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleRegistrar))
	calendarGroup.GET("/practitioners/:id/schedule", h.GetSchedule)
	calendarGroup.PUT("/practitioners/:id/schedule/:weekday", h.PutSchedule)
	calendarGroup.GET("/practitioners/:id/blocks", h.ListBlocks)
	calendarGroup.POST("/practitioners/:id/blocks", h.CreateBlock)
	calendarGroup.DELETE("/blocks/:id", h.DeleteBlock)
}

// -- Availability --

type freeSlotsResponse struct {
	PractitionerID uuid.UUID   `json:"practitioner_id"`
	Date           string      `json:"date"`
	Slots          []time.Time `json:"slots"`
}

func (h *Handler) FreeSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	raw := c.QueryParam("date")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	date, err := time.ParseInLocation(dateLayout, raw, h.svc.Engine().Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	slots, err := h.svc.Engine().ComputeFreeSlots(c.Request().Context(), id, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, freeSlotsResponse{PractitionerID: id, Date: raw, Slots: slots})
}

// -- Reservations --

func (h *Handler) Hold(c echo.Context) error {
	var req HoldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.svc.Hold(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.applyTransition(c, h.svc.Confirm)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.applyTransition(c, h.svc.Cancel)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.applyTransition(c, h.svc.Complete)
}

func (h *Handler) applyTransition(c echo.Context, fn func(context.Context, uuid.UUID) (*Reservation, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) GetReservation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetReservation(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListReservations(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var (
		items []*Reservation
		total int
		err   error
	)
	switch {
	case c.QueryParam("patient_id") != "":
		pid, perr := uuid.Parse(c.QueryParam("patient_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err = h.svc.ListByPatient(ctx, pid, pg.Limit, pg.Offset)
	case c.QueryParam("practitioner_id") != "":
		pid, perr := uuid.Parse(c.QueryParam("practitioner_id"))
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
		}
		items, total, err = h.svc.ListByPractitioner(ctx, pid, pg.Limit, pg.Offset)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id or practitioner_id is required")
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Schedule --

type scheduleRequest struct {
	StartTime   TimeOfDay `json:"start_time"`
	EndTime     TimeOfDay `json:"end_time"`
	SlotMinutes int       `json:"slot_minutes" validate:"omitempty,min=5,max=480"`
	Active      *bool     `json:"active"`
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	configs, err := h.svc.ListSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if configs == nil {
		configs = []*ScheduleConfig{}
	}
	return c.JSON(http.StatusOK, configs)
}

func (h *Handler) PutSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	weekday, err := strconv.Atoi(c.Param("weekday"))
	if err != nil || weekday < 0 || weekday > 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "weekday must be 0 (Sunday) to 6 (Saturday)")
	}

	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cfg := &ScheduleConfig{
		PractitionerID: id,
		Weekday:        time.Weekday(weekday),
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		SlotMinutes:    req.SlotMinutes,
		Active:         true,
	}
	if cfg.SlotMinutes == 0 {
		cfg.SlotMinutes = h.svc.Engine().defaultSlot
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if err := h.svc.UpsertSchedule(c.Request().Context(), cfg); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// -- Blocks --

type blockRequest struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Reason string    `json:"reason" validate:"max=255"`
}

func (h *Handler) ListBlocks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	loc := h.svc.Engine().Location()
	now := h.svc.Engine().clock.Now().In(loc)
	y, m, d := now.Date()
	window := TimeRange{Start: time.Date(y, m, d, 0, 0, 0, 0, loc)}
	if v := c.QueryParam("from"); v != "" {
		if window.Start, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
	}
	window.End = window.Start.Add(defaultBlockWindow)
	if v := c.QueryParam("to"); v != "" {
		if window.End, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
	}
	if window.End.Before(window.Start) {
		return echo.NewHTTPError(http.StatusBadRequest, "to must not be before from")
	}

	blocks, err := h.svc.ListBlocks(c.Request().Context(), id, window)
	if err != nil {
		return httpError(err)
	}
	if blocks == nil {
		blocks = []*Block{}
	}
	return c.JSON(http.StatusOK, blocks)
}

func (h *Handler) CreateBlock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b := &Block{PractitionerID: id, Start: req.Start, End: req.End, Reason: req.Reason}
	if err := h.svc.CreateBlock(c.Request().Context(), b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) DeleteBlock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBlock(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps scheduling errors to HTTP responses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTime):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrPatientDoubleBooked),
		errors.Is(err, ErrDuplicateSpecialtyBooking),
		errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrConfiguration):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
