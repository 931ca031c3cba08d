package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrollcall/internal/session"
)

type createSessionRequest struct {
	ClassID string   `json:"class_id" binding:"required"`
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
}

// CreateSession mints a session/QR pair for a class. Geolocation is
// required; the QR payload embeds it.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_id, lat and lng are required"})
		return
	}

	created, err := h.sessions.Create(c.Request.Context(), req.ClassID, *req.Lat, *req.Lng)
	if err != nil {
		if errors.Is(err, session.ErrClassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		h.serverError(c, err)
		return
	}
	h.collector.RecordSessionCreated()
	c.JSON(http.StatusCreated, created)
}

// GetSession returns one session by id.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

type cleanupRequest struct {
	CleanupType string `json:"cleanup_type"`
	DaysOld     int    `json:"days_old"`
}

// Cleanup runs the reclaim sweep. Idempotent; per-operation failures come
// back as warnings with the counts of what was removed.
func (h *Handler) Cleanup(c *gin.Context) {
	// An empty body means "sweep everything with defaults".
	var req cleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.sessions.Sweep(c.Request.Context(), req.CleanupType, req.DaysOld)
	if err != nil {
		if errors.Is(err, session.ErrUnknownCleanupType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}
	h.collector.RecordSweep("expired_qr", res.ExpiredQRCodes)
	h.collector.RecordSweep("ended_sessions", res.EndedSessions)
	h.collector.RecordSweep("old_qr", res.OldQRCodes)
	c.JSON(http.StatusOK, res)
}

// CleanupStats is the read-only probe counting active vs expired records.
func (h *Handler) CleanupStats(c *gin.Context) {
	stats, err := h.sessions.Stats(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
