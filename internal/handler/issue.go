package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coworking-reservation/internal/engine"
	"github.com/iliyamo/coworking-reservation/internal/model"
	"github.com/iliyamo/coworking-reservation/internal/repository"
)

// OutageConfirmer is the slice of the engine this handler drives:
// recording an outage and redistributing the bookings it strands.
type OutageConfirmer interface {
	ConfirmOutage(ctx context.Context, req engine.ConfirmOutageRequest) (*engine.RedistributionReport, error)
}

// IssueStore is the issue persistence the handler needs.
type IssueStore interface {
	Create(ctx context.Context, i *model.Issue) error
	ByID(ctx context.Context, id uint64) (*model.Issue, error)
	SetStatus(ctx context.Context, id uint64, status string) error
	ListByStatus(ctx context.Context, status string) ([]model.Issue, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Issue, error)
}

// ResourceStatusSetter transitions a resource's lifecycle status.
type ResourceStatusSetter interface {
	SetStatus(ctx context.Context, id uint64, status string) error
}

// BookingLoader loads one booking for ownership checks.
type BookingLoader interface {
	ByID(ctx context.Context, id uint64) (*model.Booking, error)
}

// IssueHandler serves problem reports and their resolution. Customers
// report issues against their bookings; administrators confirm them,
// which records an outage, marks the resource broken and redistributes
// the bookings the outage strands.
type IssueHandler struct {
	eng       OutageConfirmer
	issues    IssueStore
	resources ResourceStatusSetter
	bookings  BookingLoader
}

func NewIssueHandler(eng OutageConfirmer, issues IssueStore, resources ResourceStatusSetter, bookings BookingLoader) *IssueHandler {
	return &IssueHandler{eng: eng, issues: issues, resources: resources, bookings: bookings}
}

type reportIssueReq struct {
	BookingID   *uint64 `json:"booking_id"`
	ResourceID  *uint64 `json:"resource_id"`
	IssueType   string  `json:"issue_type"`
	Description string  `json:"description"`
}

type confirmIssueReq struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type createOutageReq struct {
	ResourceIDs []uint64 `json:"resource_ids"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Reason      string   `json:"reason"`
}

// ReportIssue files a new issue. When only a booking is named, the
// resource is derived from it; the booking must belong to the caller.
// POST /v1/issues
func (h *IssueHandler) ReportIssue(c echo.Context) error {
	var req reportIssueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.IssueType != model.IssueWorkspace && req.IssueType != model.IssueEquipment {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "issue_type must be workspace or equipment"})
	}
	if req.BookingID == nil && req.ResourceID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id or resource_id required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if req.BookingID != nil {
		booking, err := h.bookings.ByID(ctx, *req.BookingID)
		if err != nil {
			return writeEngineError(c, err)
		}
		if booking.UserID != currentUserID(c) && !isAdmin(c) {
			return writeEngineError(c, repository.ErrForbidden)
		}
		if req.ResourceID == nil {
			req.ResourceID = &booking.ResourceID
		}
	}
	issue := model.Issue{
		UserID:      currentUserID(c),
		BookingID:   req.BookingID,
		ResourceID:  req.ResourceID,
		IssueType:   req.IssueType,
		Description: req.Description,
	}
	if err := h.issues.Create(ctx, &issue); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, issue)
}

// MyIssues lists the caller's issues, newest first.
// GET /v1/issues
func (h *IssueHandler) MyIssues(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	issues, err := h.issues.ListByUser(ctx, currentUserID(c))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"issues": issues})
}

// ListIssues lists issues for the admin queue, optionally filtered by
// status, oldest first.
// GET /v1/admin/issues?status=
func (h *IssueHandler) ListIssues(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	issues, err := h.issues.ListByStatus(ctx, c.QueryParam("status"))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"issues": issues})
}

// ConfirmIssue accepts a problem report: the resource is marked broken,
// a full outage is recorded over the given window and stranded bookings
// are redistributed. The window defaults to [now, end of the workday].
// POST /v1/admin/issues/:id/confirm
func (h *IssueHandler) ConfirmIssue(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid issue id"})
	}
	var req confirmIssueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	issue, err := h.issues.ByID(ctx, id)
	if err != nil {
		return writeEngineError(c, err)
	}
	if issue.Status != model.IssueNew {
		return c.JSON(http.StatusConflict, echo.Map{"error": "issue already processed"})
	}
	if issue.ResourceID == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "issue has no resource"})
	}

	win, err := outageWindow(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
	}

	// Redistribute first: a failure here must leave the issue new and
	// the resource untouched so the admin can simply retry.
	report, err := h.eng.ConfirmOutage(ctx, engine.ConfirmOutageRequest{
		ResourceIDs: []uint64{*issue.ResourceID},
		Window:      win,
		Reason:      model.OutageReasonIssue,
		Issue:       issue,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	if err := h.resources.SetStatus(ctx, *issue.ResourceID, model.ResourceBroken); err != nil {
		return writeEngineError(c, err)
	}
	if err := h.issues.SetStatus(ctx, issue.ID, model.IssueConfirmed); err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RejectIssue declines a problem report without touching availability.
// POST /v1/admin/issues/:id/reject
func (h *IssueHandler) RejectIssue(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid issue id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	issue, err := h.issues.ByID(ctx, id)
	if err != nil {
		return writeEngineError(c, err)
	}
	if issue.Status != model.IssueNew {
		return c.JSON(http.StatusConflict, echo.Map{"error": "issue already processed"})
	}
	if err := h.issues.SetStatus(ctx, issue.ID, model.IssueRejected); err != nil {
		return writeEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateOutage records a planned outage (maintenance) for one or more
// resources and redistributes affected bookings, without any issue.
// POST /v1/admin/outages
func (h *IssueHandler) CreateOutage(c echo.Context) error {
	var req createOutageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start/end must be RFC3339"})
	}
	reason := req.Reason
	if reason == "" {
		reason = model.OutageReasonMaintenance
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	report, err := h.eng.ConfirmOutage(ctx, engine.ConfirmOutageRequest{
		ResourceIDs: req.ResourceIDs,
		Window:      win,
		Reason:      reason,
	})
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// outageWindow parses an optional window, defaulting start to now and
// end to the close of that day's working hours.
func outageWindow(startStr, endStr string) (engine.Interval, error) {
	now := time.Now().UTC()
	win := engine.Interval{Start: now}
	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return engine.Interval{}, err
		}
		win.Start = t.UTC()
	}
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return engine.Interval{}, err
		}
		win.End = t.UTC()
	} else {
		s := win.Start
		win.End = time.Date(s.Year(), s.Month(), s.Day(), engine.WorkdayEndHour, 0, 0, 0, s.Location())
	}
	return win, nil
}
