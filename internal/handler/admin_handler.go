package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/service"
	"wallpaper/vipcenter/pkg/response"
)

type AdminHandler struct {
	codeService service.CodeService
	sweeper     service.Sweeper
	logger      *zap.Logger
}

func NewAdminHandler(codeService service.CodeService, sweeper service.Sweeper, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		codeService: codeService,
		sweeper:     sweeper,
		logger:      logger.Named("admin_handler"),
	}
}

type CreateCodesRequest struct {
	MembershipType string `json:"membership_type" binding:"required,oneof=monthly permanent"`
	Count          int    `json:"count" binding:"required,min=1"`
	Notes          string `json:"notes" binding:"max=500"`
}

type ListCodesQuery struct {
	Status         string `form:"status" binding:"omitempty,oneof=all unused used expired"`
	MembershipType string `form:"membership_type" binding:"omitempty,oneof=monthly permanent"`
	Limit          int    `form:"limit" binding:"min=0"`
	Offset         int    `form:"offset" binding:"min=0"`
}

type DeleteCodesRequest struct {
	CodeIDs []uuid.UUID `json:"code_ids" binding:"required,min=1"`
}

// CreateCodes issues a batch of membership codes.
func (h *AdminHandler) CreateCodes(c *gin.Context) {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req CreateCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.codeService.GenerateCodes(c.Request.Context(), model.MembershipType(req.MembershipType), req.Count, adminID, req.Notes)
	if err != nil {
		writeServiceError(c, h.logger, "generate codes", err)
		return
	}
	response.Success(c, result)
}

// ListCodes returns recent codes, newest first.
func (h *AdminHandler) ListCodes(c *gin.Context) {
	var q ListCodesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query: "+err.Error())
		return
	}

	list, err := h.codeService.ListCodes(c.Request.Context(), service.CodeListFilter{
		Status:         q.Status,
		MembershipType: model.MembershipType(q.MembershipType),
		Limit:          q.Limit,
		Offset:         q.Offset,
	})
	if err != nil {
		writeServiceError(c, h.logger, "list codes", err)
		return
	}
	response.Success(c, list)
}

func (h *AdminHandler) DeleteCodes(c *gin.Context) {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req DeleteCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	deleted, err := h.codeService.DeleteCodes(c.Request.Context(), req.CodeIDs, adminID)
	if err != nil {
		writeServiceError(c, h.logger, "delete codes", err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

func (h *AdminHandler) CodeStats(c *gin.Context) {
	stats, err := h.codeService.Stats(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, "code stats", err)
		return
	}
	response.Success(c, stats)
}

// Sweep runs every maintenance task once, outside the schedule.
func (h *AdminHandler) Sweep(c *gin.Context) {
	summary, err := h.sweeper.RunAll(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, "sweep", err)
		return
	}
	response.Success(c, summary)
}
