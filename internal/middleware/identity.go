package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject stored by JWTAuth.  ok is false
// for anonymous requests.
func UserID(c echo.Context) (string, bool) {
	s, ok := c.Get(ctxUserID).(string)
	return s, ok && s != ""
}

// rateSubject is the identity used in rate limit keys: the user id, or
// "anon" for unauthenticated requests.
func rateSubject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return id
	}
	return "anon"
}
