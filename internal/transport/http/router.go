package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/client/internal/config"
	"tempmail/client/internal/counter"
	"tempmail/client/internal/health"
	"tempmail/client/internal/middleware"
	"tempmail/client/internal/monitoring"
	"tempmail/client/internal/service"
	"tempmail/client/internal/settings"
	"tempmail/client/internal/view"
	"tempmail/client/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	cfg      *config.Config
	identity *service.IdentityService
	inbox    *service.InboxPoller
	lookup   *service.LookupManager
	settings *settings.Store
	counter  *counter.Counter
	contact  *service.ContactService
	renderer *view.Renderer
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	IdentityService *service.IdentityService
	InboxPoller     *service.InboxPoller
	LookupManager   *service.LookupManager
	Settings        *settings.Store
	Counter         *counter.Counter        // 可选，nil 时计数接口返回不可用
	ContactService  *service.ContactService // 可选
	Renderer        *view.Renderer
	WebSocketHub    *websocket.Hub        // 可选
	HealthChecker   *health.HealthChecker // 可选
	Metrics         *monitoring.Metrics   // 可选
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.RateLimitMetrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	renderer := deps.Renderer
	if renderer == nil {
		renderer = view.NewRenderer()
	}

	h := &Handler{
		cfg:      deps.Config,
		identity: deps.IdentityService,
		inbox:    deps.InboxPoller,
		lookup:   deps.LookupManager,
		settings: deps.Settings,
		counter:  deps.Counter,
		contact:  deps.ContactService,
		renderer: renderer,
		metrics:  deps.Metrics,
		logger:   logger.Named("handler"),
	}

	// 健康检查
	router.GET("/health", h.healthSummary(deps.HealthChecker))
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint))
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	api := router.Group("/api")
	api.Use(middleware.ValidateContentType("application/json"))
	{
		api.GET("/config", h.getConfig)

		// ========== Identity Routes ==========
		identity := api.Group("/identity")
		{
			identity.GET("", h.getIdentity)
			identity.POST("/generate", h.generateEmail)
			identity.PUT("/username", h.setUsername)
			identity.POST("/reset", h.resetUsername)
			identity.PUT("/domain", h.selectDomain)
			identity.POST("/copy", h.copyEmail)
		}

		// ========== Inbox Routes ==========
		inbox := api.Group("/inbox")
		{
			inbox.GET("", h.listInbox)
			inbox.POST("/refresh", h.refreshInbox)
			inbox.GET("/:id", h.getMessage)
			inbox.DELETE("/:id", h.deleteMessage)
			inbox.GET("/:id/attachments/:index", h.downloadAttachment)
		}
		api.POST("/activity", h.recordActivity)

		// ========== Lookup Routes ==========
		lookup := api.Group("/lookup")
		{
			lookup.GET("", h.listLookup)
			lookup.POST("", h.addLookup)
			lookup.DELETE("/:address", h.removeLookup)
			lookup.POST("/:address/read", h.markLookupRead)
		}

		api.GET("/preferences", h.getPreferences)
		api.PUT("/preferences", h.updatePreferences)

		api.GET("/visitors", h.getVisitors)
		api.POST("/visitors", h.incrementVisitors)

		api.POST("/contact", h.submitContact)
	}

	return router
}

// healthSummary 返回各组件状态，任一组件异常时返回 503
func (h *Handler) healthSummary(hc *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hc == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		results := hc.CheckHealth()
		status := http.StatusOK
		if health.Healthy(results) {
			results["status"] = "ok"
		} else {
			status = http.StatusServiceUnavailable
			results["status"] = "degraded"
		}
		c.JSON(status, results)
	}
}
