package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/config"
	"github.com/mx-space/forms/internal/database"
	"github.com/mx-space/forms/internal/middleware"
	pkgcron "github.com/mx-space/forms/internal/pkg/cron"
	pkgredis "github.com/mx-space/forms/internal/pkg/redis"
	"github.com/mx-space/forms/internal/pkg/signedurl"
	"github.com/mx-space/forms/internal/schema"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	rc       *pkgredis.Client
	registry *schema.Registry
	signer   *signedurl.Signer
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
}

// New initializes the application: catalog, DB, Redis, routes, cron.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	registry, err := schema.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	signer, err := signedurl.New(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
		if cfg.AdminToken == "" {
			logger.Warn("admin_token is empty, builder API is open")
		}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger.Named("HTTP"), apiPrefix+"/health"))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		rc:       rc,
		registry: registry,
		signer:   signer,
		logger:   logger,
		cancel:   cancel,
		sched:    pkgcron.New(logger.Named("CronService")),
	}
	svcs := app.registerRoutes()
	registerCronJobs(app.sched, svcs, cfg)
	go app.sched.Start(ctx)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes connections.
func (a *App) Shutdown() {
	a.cancel()
	if err := a.rc.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
