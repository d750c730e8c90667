package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"permitflow/internal/handler"
	"permitflow/internal/metrics"
	"permitflow/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Wizard *handler.WizardHandler
	Form   *handler.FormHandler
	Health *handler.HealthHandler
	// Preview is nil when previews are staged in S3.
	Preview *handler.PreviewHandler
}

// Options configures the engine.
type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if h.Preview != nil {
		r.GET("/previews/:bucket/*key", h.Preview.Serve)
	}

	v1 := r.Group("/api/v1")

	v1.GET("/forms", h.Form.List)
	v1.GET("/forms/:type", h.Form.Get)
	v1.GET("/options/:name", h.Form.Options)

	sessions := v1.Group("/sessions")
	sessions.POST("", h.Wizard.Create)
	sessions.GET("/:id", h.Wizard.Get)
	sessions.DELETE("/:id", h.Wizard.Discard)
	sessions.PUT("/:id/fields", h.Wizard.SetFields)

	// Attachments
	sessions.POST("/:id/files/:field", h.Wizard.AttachFile)
	sessions.DELETE("/:id/files/:field", h.Wizard.RemoveFile)
	sessions.POST("/:id/verify/:attachment", h.Wizard.Verify)
	sessions.POST("/:id/extract/:attachment", h.Wizard.Extract)
	sessions.GET("/:id/documents", h.Wizard.Documents)
	sessions.POST("/:id/preview/:field", h.Wizard.OpenPreview)
	sessions.DELETE("/:id/preview", h.Wizard.ClosePreview)

	// Navigation and submission
	sessions.POST("/:id/next", h.Wizard.Next)
	sessions.POST("/:id/previous", h.Wizard.Previous)
	sessions.GET("/:id/validate", h.Wizard.Validate)
	sessions.POST("/:id/submit", h.Wizard.Submit)

	// Review exports
	sessions.GET("/:id/review.xlsx", h.Wizard.ReviewWorkbook)
	sessions.GET("/:id/review.csv", h.Wizard.ReviewCSV)

	return r
}
