package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwtpkg "wallpaper/vipcenter/pkg/jwt"
	"wallpaper/vipcenter/pkg/response"
)

const (
	ContextKeyUserClaims = "user_claims"
	ContextKeyUserID     = "user_id"
)

// JWTAuth admits requests carrying a valid access token and stores both the
// claims and the parsed member id on the context.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "a bearer token is required")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(raw)
		if err != nil || claims.TokenType != jwtpkg.TokenTypeAccess {
			response.Unauthorized(c, "token is invalid or expired")
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			response.Unauthorized(c, "token does not name a member")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserClaims, claims)
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// UserID returns the member id stored by JWTAuth.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
