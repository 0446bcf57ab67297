package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounded dependency checks
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Check pings one dependency (database, Redis).  A nil error means
// healthy.
type Check func(ctx context.Context) error

// Health returns the health-check endpoint used by load balancers and
// monitoring systems.  With no checks it always answers 200 "ok"; otherwise
// every check runs with a short deadline and any failure yields 503 with
// the failing dependency names.
func Health(checks map[string]Check) echo.HandlerFunc {
    return func(c echo.Context) error {
        if len(checks) == 0 {
            return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()

        failed := echo.Map{}
        for name, check := range checks {
            if err := check(ctx); err != nil {
                failed[name] = err.Error()
            }
        }
        if len(failed) > 0 {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "failed": failed})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
    }
}
