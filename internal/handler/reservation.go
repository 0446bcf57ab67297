package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-reservation/internal/middleware"
    "github.com/iliyamo/hotel-reservation/internal/service/booking"
)

// ReservationHandler serves the guest-facing reservation endpoints.
// JWTAuth and RequireRole run first; ownership is checked by the service
// through the actor carried in the context.
type ReservationHandler struct {
    Svc     *booking.Service        // booking orchestrator
    Purger  *middleware.CachePurger // drops cached room listings; may be nil
    Timeout time.Duration           // deadline of each service call
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *booking.Service, purger *middleware.CachePurger, timeout time.Duration) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Svc: svc, Purger: purger, Timeout: timeout}
}

// Create handles POST /v1/reservations.  The body is
// {"reservation": {...}, "room": {"id": ...}, "user": {"id": ..., "email": ...}}.
// When no user id is given the caller's own id is used.  Returns 201 with
// the stored reservation, the nights it blocks and the room's ledger.
func (h *ReservationHandler) Create(c echo.Context) error {
    var req booking.CreateRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    if req.Reservation.UserID == 0 && req.User.ID == 0 {
        if id, ok := middleware.UserID(c); ok {
            req.User.ID = id
        }
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    res, err := h.Svc.Create(ctx, req)
    if err != nil {
        return writeError(c, err)
    }
    purge(c, h.Purger)
    return c.JSON(http.StatusCreated, res)
}

// Cancel handles DELETE /v1/reservations/:id.  It returns the cancellation
// record and the nights that became free.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid reservation id"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    res, err := h.Svc.Cancel(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    purge(c, h.Purger)
    return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid reservation id"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    r, err := h.Svc.Reservation(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r, "status": r.Status()})
}

// Mine handles GET /v1/me/reservations, newest first.
func (h *ReservationHandler) Mine(c echo.Context) error {
    userID, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, errorBody{Error: "unauthorized"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    rs, err := h.Svc.UserReservations(ctx, userID)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rs, "count": len(rs)})
}
