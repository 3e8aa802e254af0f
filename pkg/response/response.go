package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ReasonInvalidRequest = "invalid_request"
	ReasonUnauthorized   = "unauthorized"
	ReasonForbidden      = "forbidden"
	ReasonInternal       = "internal_error"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Code: 0, Message: "ok", Data: data})
}

// Result writes a business outcome that carries a machine reason, allowed or not.
func Result(c *gin.Context, httpStatus int, success bool, reason, message string, data interface{}) {
	code := 0
	if !success {
		code = httpStatus
	}
	c.JSON(httpStatus, APIResponse{Success: success, Code: code, Reason: reason, Message: message, Data: data})
}

func Error(c *gin.Context, httpStatus int, reason string, message string) {
	c.JSON(httpStatus, APIResponse{Code: httpStatus, Reason: reason, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, ReasonInvalidRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, ReasonUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, ReasonForbidden, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, ReasonInternal, message)
}
