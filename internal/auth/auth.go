// Package auth verifies the HS256 access tokens issued by the account service
// and exposes the caller's identity and role to handlers.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TokenLookup accepts the Authorization header and, for clients such as
// native audio elements that cannot set headers, the token query parameter.
const TokenLookup = "header:Authorization:Bearer ,query:token"

const contextKey = "user"

// Role is the privilege level carried in a token.
type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// ParseRole normalizes a role name. Unknown or empty names map to RoleUser.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleReviewer:
		return RoleReviewer
	default:
		return RoleUser
	}
}

// Elevated reports whether r may moderate uploads.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleReviewer
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Claims is the token payload.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	// ErrUnauthenticated is returned when no valid token was attached.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// GenerateToken signs a token for userID with the given role.
func GenerateToken(userID string, role Role, secret string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// JWTMiddleware validates the token on every request not matched by skipper.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper:       skipper,
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		TokenLookup:   TokenLookup,
		ContextKey:    contextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(echo.Context, error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		},
	})
}

// PrincipalFromContext returns the caller resolved by JWTMiddleware.
func PrincipalFromContext(c echo.Context) (Principal, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil {
		return Principal{}, ErrUnauthenticated
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{UserID: userID, Role: ParseRole(claims.Role)}, nil
}

// RawTokenFromContext returns the encoded token the caller authenticated with.
func RawTokenFromContext(c echo.Context) string {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	return token.Raw
}

// UserIDFromContext returns the caller's user id.
func UserIDFromContext(c echo.Context) (string, error) {
	p, err := PrincipalFromContext(c)
	if err != nil {
		return "", err
	}
	return p.UserID, nil
}

// RequireElevated rejects callers without a reviewer or admin role.
func RequireElevated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := PrincipalFromContext(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
			}
			if !p.Role.Elevated() {
				return echo.NewHTTPError(http.StatusForbidden, "reviewer privileges required")
			}
			return next(c)
		}
	}
}
