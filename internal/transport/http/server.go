package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"contaixt-gateway/internal/bootstrap"
	"contaixt-gateway/internal/observability"
	"contaixt-gateway/internal/transport/http/handler"
	"contaixt-gateway/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if app.Config.Otel.Enabled {
		router.Use(otelgin.Middleware(app.Config.App.Name))
	}
	router.Use(
		middleware.CORS(app.Config.App.AllowedOrigins),
		middleware.RequestLogger(app.Log),
		observability.GinMiddleware(app.Metrics),
	)

	checks := make(map[string]handler.HealthCheck)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}
	healthHandler := handler.NewHealthHandler(handler.HealthInfo{
		App:       app.Config.App.Name,
		Env:       app.Config.App.Env,
		Version:   app.Config.App.Version,
		StartedAt: app.StartedAt,
	}, checks)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	tenant := middleware.ResolveTenant(middleware.TenantOptions{
		JWTSecret:          app.Config.Auth.JWTSecret,
		Required:           app.Config.Auth.Required,
		DefaultWorkspaceID: app.Config.Tenant.DefaultWorkspaceID,
	})

	chatHandler := handler.NewChatHandler(
		app.Relay,
		time.Duration(app.Config.Relay.MaxDurationSeconds)*time.Second,
		app.Log.With("component", "chat_handler"),
	)
	router.POST("/api/chat", tenant, chatHandler.Stream)

	vaultHandler := handler.NewVaultHandler(app.Vaults, app.Log)
	sourceHandler := handler.NewSourceHandler(app.Sources, app.Log)

	v1 := router.Group("/api/v1")
	v1.Use(tenant)

	vaults := v1.Group("/vaults")
	vaults.GET("", vaultHandler.List)
	vaults.POST("", vaultHandler.Create)
	vaults.PATCH("/:id", vaultHandler.Update)
	vaults.DELETE("/:id", vaultHandler.Delete)
	vaults.GET("/:id/connections", vaultHandler.ListConnections)
	vaults.PUT("/:id/connections", vaultHandler.SetConnections)

	sources := v1.Group("/sources")
	sources.GET("", sourceHandler.List)
	sources.POST("/register", sourceHandler.Register)
	sources.POST("/:type/backfill", sourceHandler.Backfill)

	return router
}
