package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrollcall/internal/attendance"
	"qrollcall/internal/auth"
	"qrollcall/internal/config"
	"qrollcall/internal/export"
	"qrollcall/internal/handler"
	"qrollcall/internal/httpmiddleware"
	"qrollcall/internal/identifier"
	"qrollcall/internal/mailer"
	"qrollcall/internal/metrics"
	"qrollcall/internal/queue"
	"qrollcall/internal/session"
	"qrollcall/internal/storage"
	"qrollcall/internal/store"
	"qrollcall/internal/student"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if db == nil {
		return err
	}
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	} else if err := store.Migrate(cfg.DatabaseURL); err != nil {
		log.Printf("warning: migrations failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrollcall:notifications")
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	userRepo := student.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	sessRepo := session.NewRepository(db.Client)
	idRepo := identifier.NewRepository(db.Client)

	idGen := identifier.New(idRepo)
	notifier := &metricNotifier{next: mailer.NewEnqueuer(q), collector: collector}
	students := student.NewService(userRepo, notifier, idGen, cfg.IDStrategy, logger)
	sessions := session.NewService(sessRepo, cfg.SessionDuration, cfg.QRWindow, cfg.CleanupMaxAgeDays, logger)
	att := attendance.NewService(attRepo, sessRepo)

	// Export disabled until object storage is configured.
	var exports *export.Service
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploader := storage.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		exports = export.NewService(attRepo, userRepo, sessRepo, uploader, logger)
		log.Println("report storage configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("report storage not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(cfg, userRepo, students, sessions, att, attRepo, exports, redisClient, db, collector)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewIPLimiter(cfg.RateLimitPerMin).Handler())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	r.POST("/v1/auth/register", h.Register)
	r.POST("/v1/auth/login", h.Login)

	authed := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))
	authed.GET("/sessions/:id", h.GetSession)

	admin := authed.Group("", auth.RequireRole(userRepo, "admin"))
	admin.POST("/sessions", h.CreateSession)
	admin.GET("/attendance", h.ListAttendance)
	admin.POST("/export", h.Export)
	admin.GET("/students/pending", h.PendingStudents)
	admin.POST("/students/:id/approval", h.Approval)
	admin.POST("/cleanup", h.Cleanup)
	admin.GET("/cleanup", h.CleanupStats)

	studentGroup := authed.Group("", auth.RequireRole(userRepo, "student"))
	studentGroup.PUT("/students/profile", h.CompleteProfile)
	studentGroup.POST("/attendance/scan", auth.RequireApproved(), h.Scan)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// metricNotifier counts enqueue outcomes around the real notifier.
type metricNotifier struct {
	next      student.Notifier
	collector *metrics.Collector
}

func (m *metricNotifier) Notify(ctx context.Context, to, subject, body string) error {
	err := m.next.Notify(ctx, to, subject, body)
	m.collector.RecordNotification(err)
	return err
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
