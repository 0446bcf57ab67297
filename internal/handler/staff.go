package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/hotel-reservation/internal/service/booking"
)

// StaffHandler serves the front-desk endpoints: arrival and departure
// flags, refunds and the daily status report.  Routes are restricted to
// Staff and Admin.
type StaffHandler struct {
    Svc     *booking.Service
    Timeout time.Duration
}

// NewStaffHandler panics when svc is nil.
func NewStaffHandler(svc *booking.Service, timeout time.Duration) *StaffHandler {
    if svc == nil {
        panic("nil service passed to NewStaffHandler")
    }
    return &StaffHandler{Svc: svc, Timeout: timeout}
}

// flagBody is the body of the check-in, check-out and refund endpoints.
// An absent value means true for check-in and check-out and "toggle" for
// refunds.
type flagBody struct {
    Value *bool `json:"value"`
}

func bindFlag(c echo.Context) (*bool, error) {
    var body flagBody
    if c.Request().ContentLength == 0 {
        return nil, nil
    }
    if err := c.Bind(&body); err != nil {
        return nil, err
    }
    return body.Value, nil
}

// CheckIn handles PATCH /v1/reservations/:id/check-in.
func (h *StaffHandler) CheckIn(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid reservation id"})
    }
    value, err := bindFlag(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    v := true
    if value != nil {
        v = *value
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    res, err := h.Svc.SetCheckIn(ctx, id, v)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// CheckOut handles PATCH /v1/reservations/:id/check-out.
func (h *StaffHandler) CheckOut(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid reservation id"})
    }
    value, err := bindFlag(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    res, err := h.Svc.SetCheckOut(ctx, id, value)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Refund handles PATCH /v1/cancellations/:id.  Without a value the refund
// flag is toggled.
func (h *StaffHandler) Refund(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid cancellation id"})
    }
    value, err := bindFlag(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
    }
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    res, err := h.Svc.SetRefund(ctx, id, value)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Status handles GET /v1/status?date=YYYY-MM-DD.  Without a date the
// report is for today in the hotel time zone.
func (h *StaffHandler) Status(c echo.Context) error {
    ctx, cancel := serviceContext(c, h.Timeout)
    defer cancel()

    rep, err := h.Svc.Status(ctx, c.QueryParam("date"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, rep)
}
