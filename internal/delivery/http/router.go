package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/delivery/http/middleware"
	"github.com/Harsh-BH/sentinel-judge/internal/sandbox"
)

// NewRouter creates the gin router with the RPC methods and the unsigned
// read-only endpoints.
func NewRouter(gw *Gateway, sb sandbox.Sandbox, logger *zap.Logger, maxBodyBytes int64) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := NewHealthHandler(sb)
	router.GET("/healthz", healthHandler.Health)

	langHandler := NewLanguageHandler()
	router.GET("/languages", langHandler.List)

	// Signed RPC methods
	rpc := router.Group("/", middleware.BodySizeLimit(maxBodyBytes))
	{
		rpc.POST("/ping", gw.Ping)
		rpc.POST("/judge", gw.Judge)
		rpc.POST("/compile_spj", gw.CompileSPJ)
	}

	return router
}
