package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/catalog"
)

// RequirePrincipal extracts the authenticated caller from the request context.
func RequirePrincipal(c echo.Context) (auth.Principal, error) {
	p, err := auth.PrincipalFromContext(c)
	if err != nil {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
	}
	return p, nil
}

func requireID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "song id is required")
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

// canAccess reports whether p may play rec. Approved songs are public to any
// authenticated caller; pending ones only to their uploader and reviewers.
func canAccess(p auth.Principal, rec catalog.Record) bool {
	if rec.Status == catalog.StatusApproved || p.Role.Elevated() {
		return true
	}
	return rec.UploadedBy == p.UserID
}
