package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/handler/middleware"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/service"
	"wallpaper/vipcenter/pkg/crypto"
	"wallpaper/vipcenter/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, ErrNoClaims
	}
	return userID, nil
}

// RegisterValidators adds the membership_code tag to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return v.RegisterValidation("membership_code", func(fl validator.FieldLevel) bool {
		return crypto.IsMembershipCode(normalizeCode(fl.Field().String()))
	})
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// reasonStatus is the HTTP status of a denied outcome.
var reasonStatus = map[model.Reason]int{
	model.ReasonUserNotFound:      http.StatusNotFound,
	model.ReasonNeedsMembership:   http.StatusForbidden,
	model.ReasonQuotaExceeded:     http.StatusForbidden,
	model.ReasonMembershipExpired: http.StatusForbidden,
	model.ReasonCodeNotFound:      http.StatusBadRequest,
	model.ReasonCodeExpired:       http.StatusBadRequest,
	model.ReasonAlreadyPermanent:  http.StatusForbidden,
	model.ReasonTooManyAttempts:   http.StatusTooManyRequests,
}

func statusForReason(reason model.Reason) int {
	if status, ok := reasonStatus[reason]; ok {
		return status
	}
	return http.StatusBadRequest
}

var validationErrors = []error{
	service.ErrInvalidCodeFormat,
	service.ErrInvalidMembershipType,
	service.ErrInvalidCount,
	service.ErrInvalidDownloadType,
	service.ErrInvalidCodeFilter,
	service.ErrNoCodeIDs,
}

// writeServiceError maps a service error to the envelope. Anything that is
// not a known validation error is logged and hidden behind a 500.
func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if errors.Is(err, service.ErrUserNotFound) {
		reason := model.ReasonUserNotFound
		response.Result(c, statusForReason(reason), false, string(reason), reason.Message(), nil)
		return
	}

	logger.Error(op+" failed",
		zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
		zap.Error(err),
	)
	_ = c.Error(err)
	response.InternalError(c, op+" failed")
}
