// internal/api/router.go
package api

import (
	"context"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/blockchain"
	"github.com/rovshanmuradov/solana-checkout/internal/custody"
	"github.com/rovshanmuradov/solana-checkout/internal/metrics"
	"github.com/rovshanmuradov/solana-checkout/internal/quote"
	"github.com/rovshanmuradov/solana-checkout/internal/relay"
	"github.com/rovshanmuradov/solana-checkout/internal/storage"
)

// StatusChecker reports the chain status of a signature.
type StatusChecker interface {
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*blockchain.SignatureStatus, error)
}

// Pinger is implemented by stores and the RPC client for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the relay routes need.
type Deps struct {
	Quotes   quote.Source
	Builder  relay.Builder
	Registry *relay.Registry
	Chain    StatusChecker
	Ledger   storage.Ledger
	Custody  *custody.Service // nil = non-custodial deployment
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer // nil = no /metrics route
	Health   []Pinger
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with the /api routes.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger.Named("api")

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger, deps.Metrics))
	r.Use(MaxBodySize(maxBodySize))

	r.GET("/health", healthCheck(deps.Health))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	h := NewHandler(deps, logger)
	api := r.Group("/api")
	{
		api.POST("/get-quote", h.GetQuote)
		api.POST("/create-transaction", h.CreateTransaction)
		api.POST("/set-addresses", h.SetAddresses)
		api.POST("/confirm-transaction", h.ConfirmTransaction)
		if deps.Custody != nil {
			api.POST("/send-transaction", h.SendTransaction)
		}
	}
	return r
}

func healthCheck(checks []Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range checks {
			if err := p.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
