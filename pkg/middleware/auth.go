package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iDecide-Org/iDecide-API-sub000/pkg/jwt"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	RoleKey       = "role"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "token"
)

var errMissingToken = errors.New("missing authorization token")

// AuthMiddleware authenticates requests with tokens minted by the identity provider.
type AuthMiddleware struct {
	jwt *jwt.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(manager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwt: manager}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal on the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.require(false)
}

// RequireAuthOrQuery is RequireAuth that also accepts ?token=, for clients
// that cannot set headers on a websocket upgrade.
func (m *AuthMiddleware) RequireAuthOrQuery() gin.HandlerFunc {
	return m.require(true)
}

func (m *AuthMiddleware) require(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := tokenFromRequest(c.Request, allowQuery)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
			return
		}

		claims, err := m.jwt.Validate(token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("token rejected")
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(RoleKey, claims.Role)
		c.Request = c.Request.WithContext(log.With(c.Request.Context(), log.FieldUserID, claims.UserID))

		c.Next()
	}
}

func tokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if header := r.Header.Get(AuthHeaderKey); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return "", errors.New("invalid authorization format")
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			return "", errMissingToken
		}
		return token, nil
	}
	if allowQuery {
		if token := r.URL.Query().Get(TokenQueryKey); token != "" {
			return token, nil
		}
	}
	return "", errMissingToken
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetEmail extracts email from Gin context.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}

// GetRole extracts role from Gin context.
func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}
