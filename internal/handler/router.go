package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/config"
	"wallpaper/vipcenter/internal/handler/middleware"
	jwtpkg "wallpaper/vipcenter/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	membershipHandler *MembershipHandler,
	adminHandler *AdminHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := RegisterValidators(); err != nil {
		logger.Error("register binding validators", zap.Error(err))
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	membership := r.Group("/api/v1/membership")
	membership.Use(middleware.JWTAuth(jwtManager))
	{
		membership.POST("/redeem", membershipHandler.Redeem)
		membership.GET("/download-permission", membershipHandler.DownloadPermission)
		membership.POST("/download-permission", membershipHandler.DownloadPermission)
		membership.POST("/downloads", membershipHandler.RecordDownload)
		membership.GET("/me", membershipHandler.Me)
	}

	// Admin routes (JWT + admin check)
	if adminHandler != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.JWTAuth(jwtManager))
		admin.Use(middleware.AdminAuth(cfg.Admin.UserIDs, logger))
		{
			admin.POST("/membership-codes", adminHandler.CreateCodes)
			admin.GET("/membership-codes", adminHandler.ListCodes)
			admin.DELETE("/membership-codes", adminHandler.DeleteCodes)
			admin.GET("/membership-codes/stats", adminHandler.CodeStats)
			admin.POST("/membership/sweep", adminHandler.Sweep)
		}
	}

	return r
}
