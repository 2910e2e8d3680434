package front

import (
	"time"

	"github.com/deckly-app/deckly/internal/auth"
	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/http/api/front/handlers"
	"github.com/deckly-app/deckly/internal/proposal"
	"github.com/deckly-app/deckly/internal/quota"
	"github.com/deckly-app/deckly/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services are the collaborators the account-facing routes call into.
type Services struct {
	Quota             *quota.Service
	Proposals         *proposal.Service
	Throttle          *ratelimit.Manager
	GenerationTimeout time.Duration
}

// RegisterFrontRoutes registers account-facing routes under /v0.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, svc Services) {
	if r == nil || db == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	r.POST("/v0/auth/signup", authHandler.Signup)
	r.POST("/v0/auth/login", authHandler.Login)

	authed := r.Group("/v0")
	authed.Use(auth.Middleware(db, jwtCfg))
	authed.GET("/me", authHandler.Me)

	if svc.Quota != nil {
		quotaHandler := handlers.NewQuotaHandler(svc.Quota)
		authed.GET("/me/quota", quotaHandler.Get)
	}

	if svc.Proposals != nil {
		proposalHandler := handlers.NewProposalHandler(svc.Proposals, svc.Throttle, svc.GenerationTimeout)
		authed.POST("/proposals", proposalHandler.Create)
		authed.GET("/proposals", proposalHandler.List)
		authed.GET("/proposals/:id", proposalHandler.Get)
		authed.DELETE("/proposals/:id", proposalHandler.Delete)
		authed.POST("/proposals/:id/generate", proposalHandler.Generate)
		authed.GET("/proposals/:id/events", proposalHandler.Events)
	}
}
