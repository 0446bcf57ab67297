package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-reservation/internal/middleware"
    "github.com/iliyamo/hotel-reservation/internal/service/booking"
)

// AdminHandler manages the catalog (rooms, users) and runs the recovery
// sweep.  Room reads are public and live here as well so the write and
// read sides share one cache purger.
type AdminHandler struct {
    Svc     *booking.Service
    Purger  *middleware.CachePurger
    Timeout time.Duration
}

// NewAdminHandler panics when svc is nil.
func NewAdminHandler(svc *booking.Service, purger *middleware.CachePurger, timeout time.Duration) *AdminHandler {
    if svc == nil {
        panic("nil service passed to NewAdminHandler")
    }
    return &AdminHandler{Svc: svc, Purger: purger, Timeout: timeout}
}

// ListRooms handles GET /v1/rooms?order=asc|desc.
func (h *AdminHandler) ListRooms(c echo.Context) error {
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    rooms, err := h.Svc.Rooms(ctx, c.QueryParam("order"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rooms, "count": len(rooms)})
}

// GetRoom handles GET /v1/rooms/:id.
func (h *AdminHandler) GetRoom(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid room id"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    room, err := h.Svc.Room(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, room)
}

// CreateRoom handles POST /v1/rooms with {"name", "price_per_night_cents"}.
func (h *AdminHandler) CreateRoom(c echo.Context) error {
    var in booking.RoomInput
    if err := c.Bind(&in); err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    room, err := h.Svc.CreateRoom(ctx, in)
    if err != nil {
        return writeError(c, err)
    }
    purge(c, h.Purger)
    return c.JSON(http.StatusCreated, room)
}

// EnsureUser handles POST /v1/users with {"email", "role"}.  An existing
// user is returned with 200, a new one with 201.
func (h *AdminHandler) EnsureUser(c echo.Context) error {
    var body struct {
        Email string `json:"email"`
        Role  string `json:"role"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    user, created, err := h.Svc.EnsureUser(ctx, body.Email, body.Role)
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusOK
    if created {
        status = http.StatusCreated
    }
    return c.JSON(status, user)
}

// Reconcile handles POST /v1/admin/reconcile.
func (h *AdminHandler) Reconcile(c echo.Context) error {
    // The sweep walks every room and user, so it gets no request deadline.
    ctx, cancel := serviceContext(c, 0)
    defer cancel()

    rep, err := h.Svc.Reconcile(ctx)
    if err != nil {
        return writeError(c, err)
    }
    if len(rep.RoomsRepaired) > 0 {
        purge(c, h.Purger)
    }
    return c.JSON(http.StatusOK, rep)
}
