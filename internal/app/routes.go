package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/middleware"
	"github.com/mx-space/forms/internal/modules/analytics"
	"github.com/mx-space/forms/internal/modules/builder"
	"github.com/mx-space/forms/internal/modules/form"
	"github.com/mx-space/forms/internal/modules/submission"
	"github.com/mx-space/forms/internal/modules/webhook"
	"github.com/mx-space/forms/internal/pkg/mail"
	"github.com/mx-space/forms/internal/pkg/response"
	"github.com/mx-space/forms/internal/store"
)

const apiPrefix = "/api/v1"

var processStart = time.Now()

// services are the module services shared between routes and cron jobs.
type services struct {
	webhooks *webhook.Service
}

func (a *App) registerRoutes() services {
	r := a.router
	cfg := a.cfg
	logger := a.logger
	authMW := middleware.AdminToken(cfg.AdminToken)

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
			"ok":      0,
			"code":    http.StatusMethodNotAllowed,
			"message": "method not allowed",
		})
	})

	repo := store.NewGorm(a.db)
	hooks := webhook.NewService(a.db, webhook.WithLogger(logger))
	stats := analytics.NewService(a.rc, analytics.WithLogger(logger))
	forms := form.NewService(a.db, layout.NewBuilder(repo, layout.WithRepeaterChildren()), a.signer,
		form.WithLogger(logger),
		form.WithDispatcher(hooks),
		form.WithPublicURL(cfg.PublicURL),
	)
	editor := builder.NewService(repo, a.registry, builder.WithLogger(logger))
	subs := submission.NewService(a.db, a.signer,
		submission.WithLogger(logger),
		submission.WithDispatcher(hooks),
		submission.WithTracker(stats),
		submission.WithNotifier(mail.New(mail.Config{
			Enable: cfg.Mail.Enable,
			Host:   cfg.Mail.Host,
			Port:   cfg.Mail.Port,
			User:   cfg.Mail.User,
			Pass:   cfg.Mail.Pass,
			From:   cfg.Mail.From,
		})),
		submission.WithUploader(exportUploader(cfg)),
		submission.WithSpam(submission.Spam{
			HoneypotField: cfg.Spam.HoneypotField,
			MinFillTime:   time.Duration(cfg.Spam.MinSubmitSeconds) * time.Second,
		}),
		submission.WithAdminURL(cfg.PublicURL),
	)

	// Visitor routes
	root := r.Group("")
	submission.NewHandler(subs).RegisterPublicRoutes(root,
		middleware.SubmitRateLimit(a.rc, cfg.Spam.RateLimitPerMinute, logger.Named("RateLimit")),
		middleware.Idempotence(a.rc),
	)

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": humanizeDuration(time.Since(processStart)),
		})
	})
	form.NewHandler(forms).RegisterRoutes(api, authMW)
	builder.NewHandler(editor).RegisterRoutes(api, authMW)
	submission.NewHandler(subs).RegisterRoutes(api, authMW)
	webhook.NewHandler(hooks).RegisterRoutes(api, authMW)
	analytics.NewHandler(stats).RegisterRoutes(api, authMW)
	a.registerCronRoutes(api, authMW)

	logger.Info("routes registered", zap.String("prefix", apiPrefix))
	return services{webhooks: hooks}
}

func (a *App) registerCronRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/cron", authMW)
	g.GET("", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	g.POST("/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		response.NoContent(c)
	})
}
