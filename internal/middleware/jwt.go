package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/hotel-reservation/internal/model"
    "github.com/iliyamo/hotel-reservation/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject, role and email claims into the request
// context.  The provided secret must match the one used when issuing
// tokens.  Handlers read the values back with UserID, Role and Email.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            if id.UserID == 0 || id.Role == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            c.Set(ctxUserID, id.UserID)
            c.Set(ctxRole, canonicalRole(id.Role))
            c.Set(ctxEmail, id.Email)
            return next(c)
        }
    }
}

// canonicalRole maps a role claim onto the model constants regardless of
// case; unknown roles are kept as sent.
func canonicalRole(role string) string {
    for _, r := range []string{model.RoleCustomer, model.RoleStaff, model.RoleAdmin} {
        if strings.EqualFold(role, r) {
            return r
        }
    }
    return role
}
