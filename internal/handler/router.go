package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sahzadahmad246/perfectceiling/internal/middleware"
)

type RouterDeps struct {
	Quotations *QuotationHandler
	Shares     *ShareHandler
	Monitor    *MonitorHandler
	JWTSecret  []byte
	// PublicBurstWindow spaces out requests per IP on the public routes.
	// Zero disables the spacing guard (tests).
	PublicBurstWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/quotations", deps.Quotations.Create)
	authGroup.GET("/quotations", deps.Quotations.List)
	authGroup.GET("/quotations/:id", deps.Quotations.Get)
	authGroup.PUT("/quotations/:id", deps.Quotations.Update)
	authGroup.PUT("/quotations/:id/status", deps.Quotations.UpdateStatus)

	authGroup.POST("/quotations/:id/share", deps.Shares.Create)
	authGroup.GET("/quotations/:id/share", deps.Shares.GetState)
	authGroup.DELETE("/quotations/:id/share", deps.Shares.Revoke)

	authGroup.GET("/metrics/sharing", deps.Monitor.SharingMetrics)
	authGroup.GET("/metrics/security", deps.Monitor.SecurityMetrics)

	// Public share endpoints carry a coarse per-IP burst limit on top of
	// the per-token attempt limiter inside the verify flow.
	publicGroup := api.Group("/public")
	publicGroup.Use(middleware.RateLimit(deps.PublicBurstWindow))
	publicGroup.POST("/quotations/:token/verify", deps.Shares.PublicVerify)
	publicGroup.POST("/quotations/:token/status", deps.Shares.PublicUpdateStatus)
}
