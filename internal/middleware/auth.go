package middleware

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

var (
	errMissingHeader = stderrors.New("missing authorization header")
	errHeaderFormat  = stderrors.New("invalid authorization format")
)

const (
	ContextSubject = "subject"
	ContextRoles   = "roles"
)

type AuthConfig struct {
	Secret    []byte
	AdminRole string
}

type AuthMiddleware struct {
	config AuthConfig
	tokens auth.JWTService
}

func NewAuthMiddleware(config AuthConfig) *AuthMiddleware {
	if config.AdminRole == "" {
		config.AdminRole = "admin"
	}
	return &AuthMiddleware{
		config: config,
		tokens: auth.NewJWTService(config.Secret, ""),
	}
}

// Enabled reports whether tokens are verified at all. Without a secret the
// operator routes are open, which is how local and test setups run.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.config.Secret) > 0
}

// RequireAdmin verifies an HS256 bearer token and requires the admin role.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, errors.Unauthorized(errMissingHeader))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			httputil.RespondWithError(c, errors.Unauthorized(errHeaderFormat))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized(err))
			return
		}

		if !claims.HasRole(m.config.AdminRole) {
			httputil.RespondWithError(c, errors.Forbidden(nil))
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRoles, claims.Roles)
		c.Next()
	}
}
