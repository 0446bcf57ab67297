package middleware

// identity.go defines the helpers that read the caller identity stored by
// JWTAuth.  Handlers and the rate limiter use them instead of touching the
// context keys directly.

import (
    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
    ctxEmail  = "email"
)

// UserID returns the authenticated user's id.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated user's role or "" when anonymous.
func Role(c echo.Context) string {
    role, _ := c.Get(ctxRole).(string)
    return role
}

// Email returns the email claim of the token, if any.
func Email(c echo.Context) string {
    email, _ := c.Get(ctxEmail).(string)
    return email
}
