package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallpaper/vipcenter/pkg/response"
)

func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(ContextKeyRequestID)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.APIResponse{
					Code:    http.StatusInternalServerError,
					Reason:  response.ReasonInternal,
					Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}
