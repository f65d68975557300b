package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRoles  = "roles"
)

// UserID returns the authenticated account id, or "" when the request
// carried no valid bearer token.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// Roles returns the roles claim of the authenticated caller.
func Roles(c echo.Context) []string {
	if r, ok := c.Get(ctxRoles).([]string); ok {
		return r
	}
	return nil
}

// currentUserID is UserID with "anon" for unauthenticated requests, for
// building rate-limit keys.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
