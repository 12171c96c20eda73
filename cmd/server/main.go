// Package main runs the community platform HTTP API with the dashboard WebSocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/communityhub/backend/config"
	"github.com/communityhub/backend/internal/auth"
	"github.com/communityhub/backend/internal/contacts"
	"github.com/communityhub/backend/internal/courses"
	"github.com/communityhub/backend/internal/emaillogs"
	"github.com/communityhub/backend/internal/enrollments"
	"github.com/communityhub/backend/internal/events"
	"github.com/communityhub/backend/internal/exports"
	"github.com/communityhub/backend/internal/mailer"
	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/news"
	"github.com/communityhub/backend/internal/payments"
	"github.com/communityhub/backend/internal/realtime"
	"github.com/communityhub/backend/internal/registrations"
	"github.com/communityhub/backend/internal/settings"
	"github.com/communityhub/backend/internal/stats"
	"github.com/communityhub/backend/internal/uploads"
	"github.com/communityhub/backend/internal/users"
	"github.com/communityhub/backend/internal/videos"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
	"github.com/communityhub/backend/pkg/redis"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/storage"
	"github.com/communityhub/backend/pkg/validation"
	"github.com/communityhub/backend/pkg/youtube"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var media uploads.Storage
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			media = s3Client
		}
	}

	var ytMeta videos.MetadataFetcher
	if yt, err := youtube.NewClient(ctx, cfg.YouTube.APIKey); err == nil {
		ytMeta = yt
	} else if !errors.Is(err, youtube.ErrNotConfigured) {
		logger.Warn("youtube metadata disabled", zap.Error(err))
	}

	validation.RegisterGin()

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Admin auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours),
		auth.NewRedisSessions(rdb.Client), auth.NewRedisThrottle(rdb.Client), logger)
	if err := authSvc.Bootstrap(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
	authHandler := auth.NewHandler(authSvc, logger)

	// Mail
	settingsRepo := settings.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)
	mailSvc := mailer.NewService(mailer.SMTPTransport{}, emailLogsRepo, settingsRepo, mailer.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPass,
		From:     cfg.Email.FromAddress,
		FromName: cfg.Email.FromName,
	}, cfg.Server.SiteName, logger)

	// Events and registrations
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, eventRepo, mailSvc, hub, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Courses, enrollments and videos
	courseRepo := courses.NewRepository(pool)
	courseHandler := courses.NewHandler(courseRepo, logger)
	enrollmentRepo := enrollments.NewRepository(pool)
	enrollmentSvc := enrollments.NewService(enrollmentRepo, courseRepo, mailSvc, hub, logger)
	enrollmentHandler := enrollments.NewHandler(enrollmentSvc, logger)
	videoRepo := videos.NewRepository(pool)
	videoSvc := videos.NewService(videoRepo, enrollmentRepo,
		videos.NewTokenIssuer(cfg.Video.TokenSecret, cfg.Video.TokenTTLMinutes, cfg.Video.MaxViews, cfg.Video.BindIP),
		ytMeta, logger)
	videoHandler := videos.NewHandler(videoSvc, logger)

	paymentHandler := payments.NewHandler(registrationSvc, enrollmentSvc, logger)

	// Contacts, members, news
	contactRepo := contacts.NewRepository(pool)
	contactHandler := contacts.NewHandler(contactRepo, hub, logger)
	userRepo := users.NewRepository(pool)
	userHandler := users.NewHandler(userRepo, logger)
	newsHandler := news.NewHandler(news.NewRepository(pool), logger)

	// Dashboard
	statsHandler := stats.NewHandler(stats.NewRepository(pool), logger)
	settingsHandler := settings.NewHandler(settingsRepo, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, jobQueue, logger)
	uploadHandler := uploads.NewHandler(media, logger)
	exportHandler := exports.NewHandler(exports.Sources{
		Registrations: registrationSvc,
		Enrollments:   enrollmentSvc,
		Contacts:      contactRepo,
		Members:       userRepo,
		Events:        eventRepo,
	}, exportLocation(cfg.Server.Timezone, logger), logger)

	formLimiter := middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst))
	anyAdmin := middleware.RequireRole(models.RoleAdmin, models.RoleEditor)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	router := gin.New()
	if err := middleware.TrustProxies(router, cfg.Server.TrustedProxies); err != nil {
		logger.Fatal("trusted proxies", zap.Strings("proxies", cfg.Server.TrustedProxies), zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("health: database", zap.Error(err))
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(ctx, time.Second); err != nil {
			logger.Warn("health: redis", zap.Error(err))
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Public site
	public := router.Group("/api")
	{
		public.GET("/events", eventHandler.List)
		public.GET("/events/:id", eventHandler.Get)
		public.POST("/registrations", formLimiter, registrationHandler.Create)

		public.GET("/courses", courseHandler.List)
		public.GET("/courses/:id", courseHandler.Get)
		public.GET("/courses/:id/videos", videoHandler.ListByCourse)
		public.POST("/course-enrollments", formLimiter, enrollmentHandler.Create)

		public.POST("/videos/:id/access", formLimiter, videoHandler.Access)
		public.POST("/videos/validate", videoHandler.Validate)
		public.POST("/videos/track", videoHandler.Track)

		public.POST("/contacts", formLimiter, contactHandler.Create)

		public.GET("/news", newsHandler.List)
		public.GET("/news/:slug", newsHandler.Get)

		public.POST("/admin/auth/login", formLimiter, authHandler.Login)
	}

	// Dashboard (admin JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(authSvc.Authenticate), anyAdmin)
	{
		api.GET("/admin/auth/me", authHandler.Me)
		api.POST("/admin/auth/logout", authHandler.Logout)
		api.GET("/admin/sessions", authHandler.ListSessions)
		api.DELETE("/admin/sessions/:id", authHandler.RevokeSession)
		api.POST("/admin/security/password", authHandler.ChangePassword)

		api.GET("/stats", statsHandler.Get)

		api.POST("/events", eventHandler.Create)
		api.PUT("/events/:id", eventHandler.Update)
		api.PATCH("/events/:id/status", eventHandler.SetStatus)
		api.DELETE("/events/:id", adminOnly, eventHandler.Delete)

		api.GET("/registrations", registrationHandler.List)
		api.GET("/registrations/:id", registrationHandler.Get)
		api.PATCH("/registrations/:id", registrationHandler.Update)
		api.DELETE("/registrations/:id", adminOnly, registrationHandler.Delete)

		api.GET("/course-enrollments", enrollmentHandler.List)
		api.GET("/course-enrollments/:id", enrollmentHandler.Get)
		api.PATCH("/course-enrollments/:id", enrollmentHandler.Update)
		api.DELETE("/course-enrollments/:id", adminOnly, enrollmentHandler.Delete)

		api.GET("/admin/payments/pending", paymentHandler.ListPending)
		api.POST("/admin/payments/:kind/:id/verify", paymentHandler.Verify)

		api.GET("/admin/courses", courseHandler.AdminList)
		api.GET("/admin/courses/:id", courseHandler.AdminGet)
		api.GET("/admin/courses/:id/videos", videoHandler.AdminListByCourse)
		api.POST("/admin/courses", courseHandler.Create)
		api.PUT("/admin/courses/:id", courseHandler.Update)
		api.DELETE("/admin/courses/:id", adminOnly, courseHandler.Delete)

		api.GET("/admin/videos/:id", videoHandler.Get)
		api.POST("/admin/videos", videoHandler.Create)
		api.PUT("/admin/videos/:id", videoHandler.Update)
		api.DELETE("/admin/videos/:id", videoHandler.Delete)
		api.GET("/videos/:id/views", videoHandler.Views)

		api.GET("/contacts", contactHandler.List)
		api.GET("/contacts/:id", contactHandler.Get)
		api.PATCH("/contacts/:id", contactHandler.Update)
		api.POST("/contacts/:id/notes", contactHandler.AddNote)
		api.DELETE("/contacts/:id", adminOnly, contactHandler.Delete)

		api.GET("/admin/news", newsHandler.AdminList)
		api.GET("/admin/news/:id", newsHandler.AdminGet)
		api.POST("/admin/news", newsHandler.Create)
		api.PUT("/admin/news/:id", newsHandler.Update)
		api.DELETE("/admin/news/:id", newsHandler.Delete)

		api.POST("/admin/uploads/presign", uploadHandler.Presign)
		api.POST("/admin/uploads", uploadHandler.Upload)
		api.DELETE("/admin/uploads", uploadHandler.Delete)

		api.GET("/users", adminOnly, userHandler.List)
		api.GET("/users/:id", adminOnly, userHandler.Get)
		api.POST("/users", adminOnly, userHandler.Create)
		api.PUT("/users/:id", adminOnly, userHandler.Update)
		api.PATCH("/users/:id/status", adminOnly, userHandler.SetStatus)
		api.DELETE("/users/:id", adminOnly, userHandler.Delete)

		api.GET("/admin/settings", adminOnly, settingsHandler.List)
		api.PUT("/admin/settings", adminOnly, settingsHandler.Update)

		api.GET("/admin/emails", adminOnly, emailLogsHandler.List)
		api.POST("/admin/emails/:id/resend", adminOnly, emailLogsHandler.Resend)

		api.GET("/admin/export/:resource", adminOnly, exportHandler.Export)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader(cfg.Server.CORSAllowedOrigins), authSvc.Authenticate, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// exportLocation is the zone export timestamps are written in.
func exportLocation(name string, logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("export timezone unavailable, using UTC", zap.String("timezone", name), zap.Error(err))
		return time.UTC
	}
	return loc
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
