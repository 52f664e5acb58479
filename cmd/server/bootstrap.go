package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/api"
	"github.com/steamsedu/steams/internal/app"
	"github.com/steamsedu/steams/internal/app/maintenance"
	iauth "github.com/steamsedu/steams/internal/auth"
	"github.com/steamsedu/steams/internal/database"
	"github.com/steamsedu/steams/internal/middleware"
	"github.com/steamsedu/steams/internal/push"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/services"
	"github.com/steamsedu/steams/internal/store"
	"github.com/steamsedu/steams/pkg/logger"
)

const rateStoreSweep = time.Minute

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Rooms      *realtime.Registry
	Dispatcher *push.Dispatcher
	Scheduler  *maintenance.Scheduler
	RateStore  middleware.RateStore
	Router     *gin.Engine

	stopSweep context.CancelFunc
}

// bootstrapRuntime initialises the database, the room registry, push delivery and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Rooms = realtime.NewRegistry()

	// A nil interface, not a typed nil pointer, tells the router push is off.
	var dispatcher services.Dispatcher
	if cfg.Push.Enabled {
		stack.Dispatcher, err = initialisePush(stack.DB, cfg.Push)
		if err != nil {
			return nil, err
		}
		dispatcher = stack.Dispatcher
	} else {
		log.Info("push delivery disabled")
	}

	if cfg.Maintenance.Enabled && stack.Dispatcher != nil {
		stack.Scheduler, err = initialiseScheduler(stack.DB, stack.Dispatcher, cfg.Maintenance)
		if err != nil {
			return nil, err
		}
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	stack.stopSweep = cancel
	stack.RateStore = middleware.NewMemoryRateStore(sweepCtx, rateStoreSweep)

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.Rooms, dispatcher, stack.RateStore)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func initialisePush(db *gorm.DB, cfg app.PushConfig) (*push.Dispatcher, error) {
	sender, err := push.NewWebPushSender(push.WebPushConfig{
		Subscriber:      cfg.Subscriber,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		TTL:             time.Duration(cfg.TTL) * time.Second,
		Urgency:         cfg.Urgency,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise web push sender: %w", err)
	}

	subscriptions, err := store.NewSubscriptionStore(db)
	if err != nil {
		return nil, err
	}

	dispatcher, err := push.NewDispatcher(subscriptions, sender,
		push.WithTimeout(cfg.Timeout),
		push.WithMaxConcurrency(cfg.MaxConcurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise push dispatcher: %w", err)
	}
	return dispatcher, nil
}

func initialiseScheduler(db *gorm.DB, dispatcher *push.Dispatcher, cfg app.MaintenanceConfig) (*maintenance.Scheduler, error) {
	subscriptions, err := store.NewSubscriptionStore(db)
	if err != nil {
		return nil, err
	}
	users, err := store.NewUserStore(db)
	if err != nil {
		return nil, err
	}
	messages, err := store.NewMessageStore(db)
	if err != nil {
		return nil, err
	}

	return maintenance.NewScheduler(subscriptions, users, messages, dispatcher,
		maintenance.WithDigestSchedule(cfg.DigestSchedule),
		maintenance.WithReminderSchedule(cfg.ReminderSchedule),
	)
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("maintenance jobs still running at shutdown")
		}
	}

	if s.stopSweep != nil {
		s.stopSweep()
	}

	if s.Rooms != nil {
		s.Rooms.Close()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
