package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/uw-ssec/ca-biositing-sub000/internal/http/handlers"
	httpMW "github.com/uw-ssec/ca-biositing-sub000/internal/http/middleware"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics
	// Service names server spans.
	Service string
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string

	HealthHandler *httpH.HealthHandler
	ViewHandler   *httpH.ViewHandler
	RecordHandler *httpH.RecordHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	service := cfg.Service
	if service == "" {
		service = "biositing"
	}
	r.Use(httpMW.Tracing(service))
	r.Use(httpMW.AttachTraceContext())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(httpMW.CORS(cfg.CORSOrigins))
	}
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		if cfg.ViewHandler != nil {
			api.GET("/views", cfg.ViewHandler.ListState)
			api.POST("/views/refresh", cfg.ViewHandler.Refresh)
		}
		if cfg.RecordHandler != nil {
			api.GET("/records/:type/latest", cfg.RecordHandler.Latest)
			api.GET("/records/:type/:ref", cfg.RecordHandler.Resolve)
			api.GET("/runs/:id", cfg.RecordHandler.GetRun)
		}
	}
	return r
}
