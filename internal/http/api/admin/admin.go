package admin

import (
	"github.com/deckly-app/deckly/internal/analytics"
	"github.com/deckly-app/deckly/internal/auth"
	"github.com/deckly-app/deckly/internal/config"
	handlers "github.com/deckly-app/deckly/internal/http/api/admin/handlers"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services are the collaborators the admin routes call into.
type Services struct {
	Quota     *quota.Service
	Proposals *proposal.Service
	Analytics *analytics.Service
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc Services) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	authed := r.Group("/v0/admin")
	authed.Use(auth.Middleware(db, jwtCfg))
	authed.Use(auth.RequireAdmin())

	if svc.Quota != nil {
		userHandler := handlers.NewUserHandler(db, svc.Quota)
		authed.POST("/users", userHandler.Create)
		authed.GET("/users", userHandler.List)
		authed.GET("/users/:id", userHandler.Get)
		authed.PUT("/users/:id", userHandler.Update)
		authed.DELETE("/users/:id", userHandler.Delete)
		authed.POST("/users/:id/disable", userHandler.Disable)
		authed.POST("/users/:id/enable", userHandler.Enable)
		authed.PUT("/users/:id/password", userHandler.ChangePassword)

		limitHandler := handlers.NewLimitHandler(svc.Quota)
		authed.GET("/limits/default", limitHandler.GetDefault)
		authed.PUT("/limits/default", limitHandler.SetDefault)
		authed.POST("/limits/batch", limitHandler.Batch)
		authed.GET("/users/:id/limit", limitHandler.GetAccount)
		authed.PUT("/users/:id/limit", limitHandler.SetAccount)
	}

	if svc.Proposals != nil {
		proposalHandler := handlers.NewProposalHandler(svc.Proposals)
		authed.GET("/proposals", proposalHandler.List)
		authed.GET("/proposals/:id", proposalHandler.Get)
	}

	if svc.Analytics != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(svc.Analytics)
		authed.GET("/analytics/summary", analyticsHandler.Summary)
		authed.GET("/analytics/daily", analyticsHandler.Daily)
		authed.GET("/analytics/top-accounts", analyticsHandler.TopAccounts)
		authed.GET("/analytics/generations", analyticsHandler.Generations)
	}

	settingHandler := handlers.NewSettingHandler(db)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)
}
