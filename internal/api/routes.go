package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Lordevs/legacyverse-backend/internal/api/middleware"
	"github.com/Lordevs/legacyverse-backend/internal/auth"
	"github.com/Lordevs/legacyverse-backend/internal/config"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
)

// Dependencies 汇总路由需要的全部依赖。
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Auth     *auth.AuthService
	Resets   *auth.PasswordResetService
	Profiles *profile.Service
	Redis    redis.UniversalClient
	Queue    TaskEnqueuer
	Logger   *zap.Logger
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	maxImageBytes := deps.Config.Media.MaxImageBytes

	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.Resets, deps.Profiles, deps.Redis, deps.Logger, deps.Config.API)
	wsHandler := NewWsHandler(deps.Redis, deps.Auth, deps.Logger, deps.Config.API.AllowedOrigins)
	selfHandler := NewSelfProfileHandler(deps.Profiles, maxImageBytes)
	adminProfileHandler := NewAdminProfileHandler(deps.Profiles, maxImageBytes)
	adminHandler := NewAdminHandler(deps.DB, deps.Profiles, deps.Queue)
	blogHandler := NewBlogHandler(deps.DB)

	authMiddleware := middleware.AuthMiddleware(deps.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/forgot-password", authHandler.ForgotPassword)
			authGroup.POST("/reset-password", authHandler.ResetPassword)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
		}

		v1.GET("/profiles/:username", selfHandler.PublicProfile)

		selfGroup := v1.Group("/profile")
		selfGroup.Use(authMiddleware, passwordGate)
		registerProfileRoutes(selfGroup, selfHandler)
		selfGroup.PUT("/sections/images/:imageId", selfHandler.UpdateSectionImage)
		selfGroup.DELETE("/sections/images/:imageId", selfHandler.DeleteSectionImage)

		adminGroup := v1.Group("/admin")
		adminGroup.Use(authMiddleware, passwordGate, middleware.RequireAdminMiddleware(deps.DB))
		{
			adminGroup.GET("/users", adminHandler.ListUsers)

			target := adminGroup.Group("/users/:userId/profile")
			registerProfileRoutes(target, adminProfileHandler)
			target.PUT("/sections/:sectionId/images/:imageId", adminProfileHandler.UpdateSectionImage)
			target.DELETE("/sections/:sectionId/images/:imageId", adminProfileHandler.DeleteSectionImage)
			target.POST("/images/sweep", adminHandler.SweepImages)
		}

		blogs := v1.Group("/blogs")
		{
			blogs.GET("", blogHandler.List)
			blogs.GET("/:slug", middleware.OptionalAuthMiddleware(deps.Auth), blogHandler.Get)
			blogs.POST("", authMiddleware, passwordGate, blogHandler.Create)
			blogs.PUT("/:slug", authMiddleware, passwordGate, blogHandler.Update)
			blogs.PATCH("/:slug", authMiddleware, passwordGate, blogHandler.Update)
			blogs.DELETE("/:slug", authMiddleware, passwordGate, blogHandler.Delete)
		}
		v1.GET("/user/blogs", authMiddleware, passwordGate, blogHandler.Mine)
	}
}

// registerProfileRoutes 注册 self 与 admin 共用的 profile 路由。
// 图片 caption/删除的路径两边不同，由调用方单独注册。
func registerProfileRoutes(g *gin.RouterGroup, h *ProfileHandler) {
	g.GET("", h.GetProfile)
	g.PUT("", h.UpdateProfile)
	g.PATCH("", h.UpdateProfile)
	g.POST("/image", h.UploadDisplayImage)
	g.DELETE("/image", h.DeleteDisplayImage)
	g.PUT("/update-complete", h.UpdateComplete)
	g.PATCH("/update-complete", h.UpdateComplete)

	g.GET("/sections", h.ListSections)
	g.POST("/sections", h.AddSection)
	g.POST("/sections/reorder", h.ReorderSections)
	g.PUT("/sections/reorder", h.ReorderSections)
	g.POST("/sections/reset-default", h.ResetSections)
	g.GET("/sections/:sectionId", h.GetSection)
	g.PUT("/sections/:sectionId", h.UpdateSection)
	g.PATCH("/sections/:sectionId", h.UpdateSection)
	g.DELETE("/sections/:sectionId", h.DeleteSection)
	g.GET("/sections/:sectionId/images", h.ListSectionImages)
	g.POST("/sections/:sectionId/images", h.UploadSectionImages)

	g.GET("/childhood-images", h.ListChildhoodImages)
	g.POST("/childhood-images", h.UploadChildhoodImages)
	g.DELETE("/childhood-images", h.DeleteAllChildhoodImages)
	g.PUT("/childhood-images/:imageId", h.UpdateChildhoodImage)
	g.DELETE("/childhood-images/:imageId", h.DeleteChildhoodImage)
}
