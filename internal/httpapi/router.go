package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alfielabs/alfie-backend/internal/common"
	"github.com/alfielabs/alfie-backend/internal/config"
	"github.com/alfielabs/alfie-backend/internal/httpapi/handlers"
	"github.com/alfielabs/alfie-backend/internal/httpapi/middleware"
	"github.com/alfielabs/alfie-backend/internal/logging"
)

func NewRouter(h *handlers.Handler, cfg config.Config, log *logging.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/users", h.Register)
	r.POST("/login", h.Login)

	// render backends call back here; token-checked, not JWT-authed
	r.POST("/webhooks/render", h.RenderWebhook)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	authGroup.GET("/me", h.Me)

	// brands
	authGroup.POST("/brands", h.CreateBrand)
	authGroup.GET("/brands", h.ListBrands)
	authGroup.GET("/brands/:brand_id", h.GetBrand)
	authGroup.GET("/brands/:brand_id/quota", h.GetQuotaSummary)
	authGroup.GET("/brands/:brand_id/library", h.ListLibraryAssets)

	// conversations (the ordering pipeline entry point)
	authGroup.POST("/conversations", h.CreateConversation)
	authGroup.GET("/conversations/:session_id", h.GetConversation)
	authGroup.POST("/conversations/:session_id/messages", h.PostConversationMessage)
	authGroup.GET("/conversations/:session_id/messages", h.ListConversationMessages)

	// orders and jobs
	authGroup.GET("/orders/:order_id", h.GetOrder)
	authGroup.GET("/jobs/:job_id", h.GetJob)

	// operator recovery
	adminGroup := authGroup.Group("/admin")
	adminGroup.Use(middleware.AdminRequired())
	adminGroup.POST("/jobs/force-process", h.ForceProcessJobs)

	return r
}
