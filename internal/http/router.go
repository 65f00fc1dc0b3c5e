package http

import (
	"github.com/gin-gonic/gin"

	"conti/internal/identity"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
)

// NewRouter builds the gin engine. Every /accounts and /admin route needs a
// bearer token; /admin additionally needs the admin claim.
func NewRouter(accounts Accounts, limiter *ratelimit.Limiter, opts Options) *gin.Engine {
	tracer := trace.NewMiddleware(opts.Logger)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		tracer.Handler(),
		security.Headers(security.DefaultHeadersConfig()),
	)

	h := &handler{accounts: accounts, tracer: tracer, limiter: limiter}

	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)

	api := r.Group("")
	api.Use(AuthMiddleware(opts.JWTSecret))
	if limiter != nil {
		api.Use(limiter.Middleware(ownerKey))
	}

	api.POST("/accounts", h.createAccount)
	api.GET("/accounts", h.listAccounts)
	api.GET("/accounts/global-info", h.globalInfo)
	api.GET("/accounts/:id", h.getAccount)
	api.PATCH("/accounts/:id", h.updateAccount)
	api.DELETE("/accounts/:id", h.deleteAccount)
	api.POST("/accounts/:id/favorite", h.toggleFavorite)
	api.GET("/accounts/:id/balance", h.balance)

	api.GET("/accounts/:id/transactions", h.listTransactions)
	api.POST("/accounts/:id/transactions", h.createTransaction)
	api.GET("/accounts/:id/transactions/export.xlsx", h.exportTransactions)
	api.DELETE("/accounts/:id/transactions/:transactionId", h.deleteTransaction)

	admin := api.Group("/admin")
	admin.Use(RequireAdmin())
	admin.POST("/accounts/:id/balance", h.setCurrentBalance)
	admin.POST("/accounts/:id/reconcile", h.reconcile)
	admin.GET("/metrics", h.metrics)

	return r
}

// ownerKey rate-limits per authenticated owner, falling back to the IP.
func ownerKey(c *gin.Context) string {
	if owner, ok := identity.OwnerID(c.Request.Context()); ok {
		return "owner:" + owner
	}
	return "ip:" + c.ClientIP()
}
