package handlers

import (
	"net/http"

	_ "kiln_controller/internal/docs"
	"kiln_controller/internal/logger"
	"kiln_controller/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be
// nil, in which case /metrics is not served.
func NewHandler(services *service.Service, log *logger.Logger, metrics http.Handler) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// read-only status stream
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		h.registerKilnRoutes(api)
		h.registerProgramRoutes(api)
		h.registerLogRoutes(api)
		api.POST("/operators", h.signUp)
	}
}

func (h *Handler) registerKilnRoutes(api *gin.RouterGroup) {
	kiln := api.Group("/kiln")
	{
		// Body: {"name":"bisque"} or {"program":{...}}
		kiln.POST("/load", h.loadProgram)
		kiln.POST("/start", h.startRun)
		kiln.POST("/pause", h.pauseRun)
		kiln.POST("/resume", h.resumeRun)
		kiln.POST("/abort", h.abortRun)
		kiln.POST("/cleanup", h.cleanupRun)
		kiln.POST("/alarm/ack", h.ackAlarm)
		kiln.GET("/state", h.getState)
	}
}

func (h *Handler) registerProgramRoutes(api *gin.RouterGroup) {
	programs := api.Group("/programs")
	{
		programs.GET("", h.listPrograms)
		programs.POST("", h.saveProgram)
		programs.GET("/:name", h.getProgram)
		programs.DELETE("/:name", h.deleteProgram)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
		logs.GET("/", h.getLogs)
	}
}
