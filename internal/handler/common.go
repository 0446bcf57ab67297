package handler // handler defines the HTTP handlers of the booking API

import (
    "context"  // per-request deadlines for service calls
    "errors"   // errors.Is / errors.As against the service taxonomy
    "net/http" // HTTP status codes
    "strconv"  // parsing path parameters
    "time"     // request timeout

    "github.com/labstack/echo/v4"
    "github.com/labstack/gommon/log"

    "github.com/iliyamo/hotel-reservation/internal/middleware"
    "github.com/iliyamo/hotel-reservation/internal/service/booking"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
    Error             string `json:"error"`
    ReconcileRequired bool   `json:"reconcile_required"`
}

// writeError maps a service error onto an HTTP status.  Internal details
// never reach the client; they are already logged by the service.
func writeError(c echo.Context, err error) error {
    var step *booking.StepError
    switch {
    case errors.Is(err, booking.ErrNotFound):
        return c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
    case errors.Is(err, booking.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
    case errors.Is(err, booking.ErrForbidden):
        return c.JSON(http.StatusForbidden, errorBody{Error: "forbidden"})
    case errors.As(err, &step):
        return c.JSON(http.StatusInternalServerError, errorBody{
            Error:             "internal error during " + step.Flow,
            ReconcileRequired: step.NeedsReconcile,
        })
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusGatewayTimeout, errorBody{Error: "request timed out"})
    case errors.Is(err, booking.ErrConflict):
        return c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
    default:
        c.Logger().Errorj(log.JSON{"path": c.Path(), "error": err.Error()})
        return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
    }
}

// serviceContext derives the context for one service call: the request
// context bounded by timeout, carrying the authenticated caller.
func serviceContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
    ctx := c.Request().Context()
    if id, ok := middleware.UserID(c); ok {
        ctx = booking.WithActor(ctx, booking.Actor{UserID: id, Role: middleware.Role(c)})
    }
    if timeout <= 0 {
        return context.WithCancel(ctx)
    }
    return context.WithTimeout(ctx, timeout)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// purge drops cached room listings after availability changed.  A failed
// purge only costs staleness until the TTL expires.
func purge(c echo.Context, p *middleware.CachePurger) {
    if p == nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
    defer cancel()
    if err := p.Purge(ctx); err != nil {
        c.Logger().Warnf("cache purge failed: %v", err)
    }
}
