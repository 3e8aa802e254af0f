package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallpaper/vipcenter/pkg/response"
)

// AdminAuth restricts a route group to the configured operator ids. It must
// run after JWTAuth. Ids are compared in canonical form; unparsable entries
// are skipped with a warning.
func AdminAuth(adminUserIDs []string, logger *zap.Logger) gin.HandlerFunc {
	operators := make(map[uuid.UUID]struct{}, len(adminUserIDs))
	for _, raw := range adminUserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			logger.Warn("ignoring malformed admin user id", zap.String("value", raw))
			continue
		}
		operators[id] = struct{}{}
	}

	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Unauthorized(c, "sign in to use the admin API")
			c.Abort()
			return
		}

		if _, isOperator := operators[userID]; !isOperator {
			logger.Info("admin access denied",
				zap.String("user_id", userID.String()),
				zap.String("path", c.FullPath()),
			)
			response.Forbidden(c, "this account is not a membership operator")
			c.Abort()
			return
		}

		c.Next()
	}
}
