// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Jehaaaa/sam-extractor/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Runner      Runner
	Runs        *session.Manager
	PreviewRows int
	Version     string
	Logger      *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Pipeline PipelineHandler
	Run      RunHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Runs.Len),
		Pipeline: NewPipelineHandler(deps.Runner, deps.Runs, deps.PreviewRows, deps.Logger),
		Run:      NewRunHandler(deps.Runs),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Pipelines
	api.POST("/match", handlers.Pipeline.HandleMatch)
	api.POST("/convert", handlers.Pipeline.HandleConvert)

	// Stored runs
	runGroup := api.Group("/runs")
	runGroup.GET("/:id", handlers.Run.HandleGetRun)
	runGroup.GET("/:id/rows", handlers.Run.HandleGetRows)
	runGroup.GET("/:id/rows/msgpack", handlers.Run.HandleGetRowsMsgpack)
	runGroup.GET("/:id/download", handlers.Run.HandleDownload)
	runGroup.DELETE("/:id", handlers.Run.HandleDeleteRun)
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
	RequestLogging bool
	ShowErrors     bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e.HTTPErrorHandler = NewErrorHandler(logger, cfg.ShowErrors)

	e.Use(middleware.Recover())

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency.Round(time.Millisecond)),
					zap.String("remote_ip", v.RemoteIP),
				}
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
					logger.Warn("request", fields...)
					return nil
				}
				logger.Info("request", fields...)
				return nil
			},
		}))
	}

	if cfg.EnableCORS {
		origins := []string{"*"}
		if cfg.AllowOrigins != "" {
			origins = strings.Split(cfg.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
}
