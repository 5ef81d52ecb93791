package api

import (
	"github.com/gin-gonic/gin"

	"github.com/JulianoCristian/iotedge/internal/api/handlers"
	"github.com/JulianoCristian/iotedge/internal/api/middleware"
	"github.com/JulianoCristian/iotedge/internal/ca"
	"github.com/JulianoCristian/iotedge/internal/config"
	"github.com/JulianoCristian/iotedge/internal/workload"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server. audit may be nil.
func NewServer(
	cfg *config.Config,
	authority *ca.Authority,
	issuer *workload.Issuer,
	audit handlers.AuditRecorder,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	// Recovery sits inside Logger so a panicking handler still gets an access line.
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Server.LogLabel))
	router.Use(gin.Recovery())

	// Create handlers
	caHandler := handlers.NewCAHandler(authority)
	certHandler := handlers.NewServerCertHandler(issuer, audit)

	modules := router.Group("/modules/:name/genid/:genid")
	{
		modules.POST("/certificate/server", certHandler.IssueServerCertificate)
	}

	router.GET("/trust-bundle", caHandler.GetTrustBundle)
	router.GET("/health", handlers.Health)

	return &Server{
		router: router,
		config: cfg,
	}
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
