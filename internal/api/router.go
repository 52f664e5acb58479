package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/app"
	iauth "github.com/steamsedu/steams/internal/auth"
	"github.com/steamsedu/steams/internal/handlers"
	"github.com/steamsedu/steams/internal/middleware"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/services"
	"github.com/steamsedu/steams/internal/store"
)

// NewRouter builds the Gin engine, wires middleware and registers the delivery routes.
// dispatcher may be nil when push delivery is disabled.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, rooms *realtime.Registry, dispatcher services.Dispatcher, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if rooms == nil {
		return nil, fmt.Errorf("room registry must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	messageStore, err := store.NewMessageStore(db)
	if err != nil {
		return nil, err
	}
	userStore, err := store.NewUserStore(db)
	if err != nil {
		return nil, err
	}
	subscriptionStore, err := store.NewSubscriptionStore(db)
	if err != nil {
		return nil, err
	}
	lessonStore, err := store.NewLessonStore(db)
	if err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(jwt)
	limit := middleware.RateLimit(rateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)

	// Realtime
	server := realtime.NewServer(rooms,
		realtime.WithSendBuffer(cfg.Realtime.SendBuffer),
		realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins...),
	)
	realtimeHandler, err := handlers.NewRealtimeHandler(server)
	if err != nil {
		return nil, err
	}
	r.GET("/ws", requireAuth, realtimeHandler.Stream)

	api := r.Group("/api")
	api.Use(requireAuth, limit)

	// Messages
	messageSvc, err := services.NewMessageService(messageStore, userStore, rooms)
	if err != nil {
		return nil, err
	}
	messageHandler, err := handlers.NewMessageHandler(messageSvc)
	if err != nil {
		return nil, err
	}
	registerMessageRoutes(api, messageHandler)

	// Notifications
	subscriptionSvc, err := services.NewSubscriptionService(subscriptionStore)
	if err != nil {
		return nil, err
	}
	var notifier *services.NotificationService
	if dispatcher != nil {
		if notifier, err = services.NewNotificationService(dispatcher); err != nil {
			return nil, err
		}
	}
	notificationHandler, err := handlers.NewNotificationHandler(subscriptionSvc, notifier, cfg.Push.VAPIDPublicKey)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	// Progress
	progressSvc, err := services.NewProgressService(lessonStore, rooms)
	if err != nil {
		return nil, err
	}
	progressHandler, err := handlers.NewProgressHandler(progressSvc)
	if err != nil {
		return nil, err
	}
	api.POST("/progress", progressHandler.Record)

	// Metrics endpoint
	if prom := cfg.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
