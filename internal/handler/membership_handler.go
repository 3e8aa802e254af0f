package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/service"
	"wallpaper/vipcenter/pkg/response"
)

type MembershipHandler struct {
	quotaService      service.QuotaService
	redemptionService service.RedemptionService
	logger            *zap.Logger
}

func NewMembershipHandler(quotaService service.QuotaService, redemptionService service.RedemptionService, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{
		quotaService:      quotaService,
		redemptionService: redemptionService,
		logger:            logger.Named("membership_handler"),
	}
}

type RedeemRequest struct {
	Code string `json:"code" binding:"required,membership_code"`
}

type RedeemResponse struct {
	GrantedType   model.MembershipType `json:"granted_type"`
	ExpiresAt     *time.Time           `json:"expires_at"`
	DownloadQuota int                  `json:"download_quota"`
}

// PermissionRequest is accepted as a query string (GET) or a JSON body (POST).
type PermissionRequest struct {
	WallpaperID  int64  `form:"wallpaper_id" json:"wallpaper_id" binding:"required,min=1"`
	IsRestricted bool   `form:"is_restricted" json:"is_restricted"`
	DownloadType string `form:"download_type" json:"download_type"`
}

type RecordDownloadRequest struct {
	PermissionRequest
	DownloadURL string `json:"download_url" binding:"omitempty,max=1024"`
	FileSize    int64  `json:"file_size" binding:"min=0"`
}

type PermissionResponse struct {
	CanDownload    bool                 `json:"can_download"`
	Reason         model.Reason         `json:"reason"`
	DownloadType   model.DownloadType   `json:"download_type"`
	MembershipType model.MembershipType `json:"membership_type,omitempty"`
	RemainingQuota int                  `json:"remaining_quota"`
	Suggestion     string               `json:"suggestion,omitempty"`
}

type RecordDownloadResponse struct {
	PermissionResponse
	DownloadLogID int64 `json:"download_log_id,omitempty"`
	QuotaConsumed bool  `json:"quota_consumed"`
}

var suggestions = map[model.Reason]string{
	model.ReasonNeedsMembership:   "redeem a membership code to unlock this download",
	model.ReasonMembershipExpired: "redeem a new membership code to renew your membership",
	model.ReasonQuotaExceeded:     "wait for the next quota reset or upgrade to permanent membership",
}

// downloadType resolves the explicit type, falling back to the restricted flag.
func (r PermissionRequest) downloadType() (model.DownloadType, bool) {
	if r.DownloadType != "" {
		return model.ParseDownloadType(r.DownloadType)
	}
	if r.IsRestricted {
		return model.DownloadHDCombo, true
	}
	return model.DownloadSingleDevice, true
}

func newPermissionResponse(result *service.PermissionResult) PermissionResponse {
	return PermissionResponse{
		CanDownload:    result.Allowed,
		Reason:         result.Reason,
		DownloadType:   result.DownloadType,
		MembershipType: result.MembershipType,
		RemainingQuota: result.RemainingQuota,
		Suggestion:     suggestions[result.Reason],
	}
}

// Redeem claims a membership code for the caller.
func (h *MembershipHandler) Redeem(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.redemptionService.Redeem(c.Request.Context(), normalizeCode(req.Code), userID)
	if err != nil {
		writeServiceError(c, h.logger, "redeem", err)
		return
	}
	if !result.Success {
		h.logger.Debug("redeem denied", zap.String("user_id", userID.String()), zap.String("reason", string(result.Reason)))
		response.Result(c, statusForReason(result.Reason), false, string(result.Reason), result.Message, nil)
		return
	}

	response.Result(c, http.StatusOK, true, string(result.Reason), result.Message, RedeemResponse{
		GrantedType:   result.GrantedType,
		ExpiresAt:     result.ExpiresAt,
		DownloadQuota: result.DownloadQuota,
	})
}

// DownloadPermission answers whether the caller may download now. It never
// consumes quota, so a denial is still a successful call.
func (h *MembershipHandler) DownloadPermission(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req PermissionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	downloadType, ok := req.downloadType()
	if !ok {
		response.BadRequest(c, service.ErrInvalidDownloadType.Error())
		return
	}

	result, err := h.quotaService.CheckDownloadPermission(c.Request.Context(), userID, downloadType)
	if err != nil {
		writeServiceError(c, h.logger, "download permission", err)
		return
	}
	if result.Reason == model.ReasonUserNotFound {
		response.Result(c, http.StatusNotFound, false, string(result.Reason), result.Reason.Message(), nil)
		return
	}

	response.Result(c, http.StatusOK, true, string(result.Reason), result.Reason.Message(), newPermissionResponse(result))
}

// RecordDownload re-checks permission, takes quota when needed and appends
// the download log.
func (h *MembershipHandler) RecordDownload(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req RecordDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	downloadType, ok := req.downloadType()
	if !ok {
		response.BadRequest(c, service.ErrInvalidDownloadType.Error())
		return
	}

	result, err := h.quotaService.ConsumeDownloadQuota(c.Request.Context(), service.DownloadRequest{
		UserID:       userID,
		WallpaperID:  req.WallpaperID,
		DownloadType: downloadType,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		DownloadURL:  req.DownloadURL,
		FileSize:     req.FileSize,
	})
	if err != nil {
		writeServiceError(c, h.logger, "record download", err)
		return
	}

	body := RecordDownloadResponse{
		PermissionResponse: newPermissionResponse(&result.PermissionResult),
		DownloadLogID:      result.DownloadLogID,
		QuotaConsumed:      result.QuotaConsumed,
	}
	if !result.Allowed {
		h.logger.Debug("download denied", zap.String("user_id", userID.String()), zap.String("reason", string(result.Reason)))
		response.Result(c, statusForReason(result.Reason), false, string(result.Reason), result.Reason.Message(), body)
		return
	}
	response.Result(c, http.StatusOK, true, string(result.Reason), result.Reason.Message(), body)
}

// Me returns the caller's membership after applying any pending expiry or refill.
func (h *MembershipHandler) Me(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	info, err := h.quotaService.MembershipInfo(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, "membership info", err)
		return
	}
	response.Success(c, info)
}
