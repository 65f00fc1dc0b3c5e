// Package http exposes the account aggregate as a JSON API over gin.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/middleware/ratelimit"
)

// Accounts is the application surface the handlers drive.
type Accounts interface {
	Create(ctx context.Context, ownerID string, in core.CreateAccountInput) (core.Account, error)
	Get(ctx context.Context, id string) (core.Account, error)
	List(ctx context.Context, ownerID string, opts core.ListOptions) (core.Page[core.Account], error)
	Update(ctx context.Context, id string, patch core.AccountPatch) (core.Account, error)
	ToggleFavorite(ctx context.Context, id string) (core.FavoriteStatus, error)
	Delete(ctx context.Context, id string) (core.Account, error)
	SetCurrentBalance(ctx context.Context, id string, value core.Money, reason string) error
	ReconcileBalance(ctx context.Context, id string) (core.Account, error)
	Balance(ctx context.Context, id string) (core.Money, error)
	CreateTransaction(ctx context.Context, accountID string, in core.NewTransaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, txID string) (core.DeleteResult, error)
	ListTransactions(ctx context.Context, accountID string, opts core.ListOptions) (core.Page[core.Transaction], error)
	GlobalInfo(ctx context.Context, ownerID string) (core.Summary, error)
	Ready(ctx context.Context) error
}

// Options configures NewServer.
type Options struct {
	JWTSecret          string
	RateLimitPerMinute int
	GinMode            string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run http.Server.
func NewServer(addr string, accounts Accounts, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	// A zero rate disables limiting.
	var limiter *ratelimit.Limiter
	if opts.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}
	return &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           NewRouter(accounts, limiter, opts),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		limiter: limiter,
	}
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
