package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qrollcall/internal/export"
)

type exportRequest struct {
	ClassID   string `json:"class_id" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Export renders an attendance CSV for a class over an optional inclusive
// date range and returns the upload URL.
func (h *Handler) Export(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage not configured"})
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_id required"})
		return
	}

	var start, end *time.Time
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		start = &t
	}
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}
		// Inclusive bound: cover the whole end day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		end = &t
	}

	result, err := h.exports.Run(c.Request.Context(), export.Request{
		ClassID:   req.ClassID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		if errors.Is(err, export.ErrClassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		h.serverError(c, err)
		return
	}
	h.collector.RecordExport(result.RecordCount)
	c.JSON(http.StatusOK, result)
}
