package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes
    "strings"  // role names are compared case-insensitively

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles (model.RoleCustomer,
// model.RoleStaff, model.RoleAdmin).  Role names match case-insensitively
// because tokens minted by other services are not always consistent.  If
// the user's role is not in the allowed set, the request is aborted with a
// 403 Forbidden response.  JWTAuth must run first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[strings.ToLower(r)] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role := strings.ToLower(Role(c))
            if role == "" || !allowed[role] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
