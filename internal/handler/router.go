package handler

import (
	"net/http"

	"github.com/GoPolymarket/guardgate/internal/config"
	"github.com/GoPolymarket/guardgate/internal/middleware"
	"github.com/GoPolymarket/guardgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps is everything the HTTP surface is built from. Archive, Stream and
// Idempotency may be nil.
type RouterDeps struct {
	Config      *config.Config
	Offers      *service.OfferService
	Archive     ReceiptArchive
	Stream      http.Handler
	Idempotency middleware.IdempotencyStore
	Limiter     *middleware.ClientLimiter
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()

	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "guardgate", "read_only": cfg.Server.ReadOnly})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	offers := NewOfferHandler(deps.Offers)
	receipts := NewReceiptHandler(deps.Archive)

	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(deps.Limiter))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly, "/v1/receipts/verify"))
	v1.Use(middleware.IdempotencyMiddleware(deps.Idempotency))
	{
		v1.GET("/offers", offers.List)
		v1.POST("/offers", offers.Create)
		v1.GET("/offers/:id", offers.Get)
		v1.GET("/offers/:id/receipts", offers.Receipts)
		v1.POST("/offers/:id/fill", offers.Fill)
		v1.POST("/offers/:id/cancel", offers.Cancel)

		v1.GET("/archive/offers/:id/receipts", receipts.ListByOffer)
		v1.GET("/receipts/:id", receipts.Get)
		v1.POST("/receipts/verify", receipts.Verify)
	}

	if deps.Stream != nil {
		r.GET("/v1/stream", gin.WrapH(deps.Stream))
	}

	return r
}
