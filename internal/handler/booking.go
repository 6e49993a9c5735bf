package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coworking-reservation/internal/engine"
	"github.com/iliyamo/coworking-reservation/internal/model"
	"github.com/iliyamo/coworking-reservation/internal/repository"
)

// BookingHandler bundles dependencies for availability and booking
// endpoints. The engine holds all allocation logic; the repositories
// here only serve list and detail views.
type BookingHandler struct {
	Engine   *engine.Engine
	Bookings *repository.BookingRepo
}

func NewBookingHandler(eng *engine.Engine, bookings *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Engine: eng, Bookings: bookings}
}

// currentUserID coerces the JWT subject stored by the auth middleware
// into a numeric user id. Zero means unauthenticated.
func currentUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}

// writeEngineError translates engine and repository errors into HTTP
// responses. Validation problems map to 400/422, availability
// shortfalls to 409 with enough detail to adjust the request.
func writeEngineError(c echo.Context, err error) error {
	var insufficient *engine.InsufficientEquipmentError
	switch {
	case errors.Is(err, engine.ErrInvalidInterval),
		errors.Is(err, engine.ErrOutsideWorkingHours),
		errors.Is(err, engine.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrTypeNotFound), errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "insufficient equipment",
			"type_id":   insufficient.TypeID,
			"type_name": insufficient.TypeName,
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
	case errors.Is(err, engine.ErrNoResourceAvailable),
		errors.Is(err, engine.ErrResourceUnavailable),
		errors.Is(err, engine.ErrNotLaterThanCurrentEnd),
		errors.Is(err, engine.ErrNoRoomLeft):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func parseWindow(startStr, endStr string) (engine.Interval, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return engine.Interval{}, err
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return engine.Interval{}, err
	}
	return engine.Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// ----- DTOs -----

type createBookingReq struct {
	ResourceTypeID uint64                 `json:"resource_type_id"`
	TimeFormat     string                 `json:"time_format"`
	Start          string                 `json:"start"`
	End            string                 `json:"end"`
	Equipment      []engine.EquipmentItem `json:"equipment"`
}

type equipmentReq struct {
	Start string                 `json:"start"`
	End   string                 `json:"end"`
	Items []engine.EquipmentItem `json:"items"`
}

type extendReq struct {
	NewEnd string `json:"new_end"`
}

type applyChangeReq struct {
	ResourceID *uint64 `json:"resource_id"`
}

// CheckAvailability returns effective and free capacity for every
// active resource of a type over the requested window.
// GET /v1/availability?type_id=&start=&end=
func (h *BookingHandler) CheckAvailability(c echo.Context) error {
	typeID, err := strconv.ParseUint(c.QueryParam("type_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type_id required"})
	}
	win, err := parseWindow(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Engine.CheckAvailability(ctx, typeID, win)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resources": rows})
}

// CreateBooking allocates a workspace booking, best-fit across the
// requested type, with optional all-or-nothing equipment.
// POST /v1/bookings
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.Engine.CreateBooking(ctx, engine.CreateBookingRequest{
		UserID:         currentUserID(c),
		ResourceTypeID: req.ResourceTypeID,
		TimeFormat:     req.TimeFormat,
		Window:         win,
		Equipment:      req.Equipment,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, booking)
}

// ListMyBookings returns the caller's bookings, newest first.
// GET /v1/bookings
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	bookings, err := h.Bookings.ListByUser(ctx, currentUserID(c))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// loadOwned fetches a booking and enforces that the caller owns it or
// is an admin.
func (h *BookingHandler) loadOwned(c echo.Context, ctx context.Context) (*model.Booking, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, engine.ErrInvalidRequest
	}
	booking, err := h.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != currentUserID(c) && !isAdmin(c) {
		return nil, repository.ErrForbidden
	}
	return booking, nil
}

// GetBooking returns one booking with its equipment children.
// GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	children, err := h.Bookings.ChildEquipment(ctx, booking.ID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": booking, "equipment": children})
}

// ExtendOptions previews how far the booking can be extended on its
// own resource and on alternatives.
// GET /v1/bookings/:id/extend-options?until=
func (h *BookingHandler) ExtendOptions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	until, err := time.Parse(time.RFC3339, c.QueryParam("until"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "until must be RFC3339"})
	}
	preview, err := h.Engine.ExtendPreview(ctx, booking.ID, until.UTC())
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, preview)
}

// ExtendConfirm applies an extension on the booking's own resource.
// POST /v1/bookings/:id/extend
func (h *BookingHandler) ExtendConfirm(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	newEnd, err := time.Parse(time.RFC3339, req.NewEnd)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_end must be RFC3339"})
	}
	updated, err := h.Engine.ExtendConfirm(ctx, booking.ID, newEnd.UTC())
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// AddEquipment books extra equipment under an existing workspace
// booking. Omitting start/end spans the whole parent interval.
// POST /v1/bookings/:id/equipment
func (h *BookingHandler) AddEquipment(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	var req equipmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	var win *engine.Interval
	if req.Start != "" || req.End != "" {
		w, err := parseWindow(req.Start, req.End)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
		}
		win = &w
	}
	created, err := h.Engine.AddEquipment(ctx, booking.ID, req.Items, win)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"bookings": created})
}

// CheckEquipment is the read-only dry run of an equipment batch.
// POST /v1/equipment/check
func (h *BookingHandler) CheckEquipment(c echo.Context) error {
	var req equipmentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Engine.CheckEquipment(ctx, win, req.Items); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": true})
}

// ApplyChange splits a booking hit by an outage onto a replacement
// resource, optionally one the caller picked.
// POST /v1/bookings/:id/apply-change
func (h *BookingHandler) ApplyChange(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	var req applyChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	result, err := h.Engine.ApplyChange(ctx, booking.ID, req.ResourceID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CancelBooking cancels a booking and its equipment children.
// DELETE /v1/bookings/:id
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	if err := h.Engine.CancelBooking(ctx, booking.ID); err != nil {
		return writeEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListChanges returns the booking's change log, oldest first.
// GET /v1/bookings/:id/changes
func (h *BookingHandler) ListChanges(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	booking, err := h.loadOwned(c, ctx)
	if err != nil {
		return writeEngineError(c, err)
	}
	changes, err := h.Bookings.ListChanges(ctx, booking.ID)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"changes": changes})
}
