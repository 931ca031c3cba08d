package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrollcall/internal/attendance"
	"qrollcall/internal/auth"
	"qrollcall/internal/config"
	"qrollcall/internal/export"
	"qrollcall/internal/metrics"
	"qrollcall/internal/model"
	"qrollcall/internal/session"
	"qrollcall/internal/store"
	"qrollcall/internal/student"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	cfg        config.App
	users      *student.Repository
	students   *student.Service
	sessions   *session.Service
	attendance *attendance.Service
	attRecords *attendance.Repository
	exports    *export.Service
	redis      *store.Redis
	db         *store.DB
	collector  *metrics.Collector
}

// New creates a handler.
func New(cfg config.App, users *student.Repository, students *student.Service, sessions *session.Service,
	att *attendance.Service, attRecords *attendance.Repository, exports *export.Service,
	redis *store.Redis, db *store.DB, collector *metrics.Collector) *Handler {
	return &Handler{
		cfg:        cfg,
		users:      users,
		students:   students,
		sessions:   sessions,
		attendance: att,
		attRecords: attRecords,
		exports:    exports,
		redis:      redis,
		db:         db,
		collector:  collector,
	}
}

// Healthz reports liveness of the backing services.
func (h *Handler) Healthz(c *gin.Context) {
	redisHealthy := h.redis.Healthy(c.Request.Context())
	dbHealthy := h.db != nil && h.db.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// serverError logs the failure and answers 500. The underlying message is
// echoed only to admin callers; everyone else gets a generic message.
func (h *Handler) serverError(c *gin.Context, err error) {
	log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	msg := "internal error"
	if u := auth.CurrentUser(c); u != nil && u.Role == model.RoleAdmin {
		msg = err.Error()
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
