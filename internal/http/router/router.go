package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/config"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/middleware"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/models"
)

// Handlers набор хэндлеров, которые монтирует роутер.
type Handlers struct {
	Health          *handlers.HealthHandler
	WS              *handlers.WSHandler
	Transaction     *handlers.TransactionHandler
	Dispute         *handlers.DisputeHandler
	Refund          *handlers.RefundHandler
	Fraud           *handlers.FraudHandler
	BackgroundCheck *handlers.BackgroundCheckHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokens middleware.TokenParser,
	rateStore limiter.Store,
	metricsHandler http.Handler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware(rateStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))

	id := middleware.UUIDValidator("id")

	transactions := protected.Group("/transactions")
	{
		transactions.POST("", h.Transaction.Create)
		transactions.GET("/my", h.Transaction.ListMine)
		transactions.GET("/:id", id, h.Transaction.Get)
		transactions.POST("/:id/confirm-receipt", id, h.Transaction.ConfirmReceipt)
		transactions.POST("/:id/confirm-handoff", id, h.Transaction.ConfirmHandoff)
		transactions.PUT("/:id/meeting", id, h.Transaction.UpdateMeeting)
		transactions.POST("/:id/dispute", id, h.Transaction.OpenDispute)
		transactions.POST("/:id/refund-requests", id, h.Refund.Create)
		transactions.GET("/:id/refund-requests", id, h.Refund.ListForTransaction)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.GET("/:id", id, h.Dispute.Get)
		disputes.POST("/:id/evidence", id, h.Dispute.AttachEvidence)
	}

	checks := protected.Group("/background-checks")
	{
		checks.POST("", h.BackgroundCheck.Request)
		checks.GET("/my", h.BackgroundCheck.ListMine)
		checks.GET("/:id", id, h.BackgroundCheck.Get)
	}

	// Сервисы повторно проверяют роль, группы отсекают чужие запросы раньше
	staff := protected.Group("/admin")
	staff.Use(middleware.RequireRole(models.RoleAdmin, models.RoleMediator))
	{
		staff.GET("/transactions", h.Transaction.ListAll)
		staff.POST("/transactions/:id/resolve", id, h.Dispute.Resolve)
		staff.GET("/disputes", h.Dispute.List)
		staff.GET("/fraud-events", h.Fraud.List)
		staff.GET("/fraud-events/:id", id, h.Fraud.Get)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/transactions/:id/fund", id, h.Transaction.Fund)
		admin.POST("/transactions/:id/force-refund", id, h.Transaction.ForceRefund)

		admin.GET("/refund-requests", h.Refund.List)
		admin.POST("/refund-requests/:id/process", id, h.Refund.Process)
		admin.POST("/refund-requests/:id/execute", id, h.Refund.Execute)
		admin.POST("/refund-requests/:id/mark-processed", id, h.Refund.MarkProcessed)

		admin.PUT("/fraud-events/:id/review", id, h.Fraud.Review)

		admin.GET("/background-checks", h.BackgroundCheck.List)
		admin.PUT("/background-checks/:id/status", id, h.BackgroundCheck.UpdateStatus)
	}

	internal := r.Group("/internal")
	internal.Use(middleware.AuthMiddleware(tokens))
	internal.Use(middleware.RequireRole(models.RoleSystem, models.RoleAdmin))
	{
		internal.POST("/fraud-events", h.Fraud.Record)
	}

	return r
}
