package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrollcall/internal/attendance"
	"qrollcall/internal/auth"
	"qrollcall/internal/model"
)

type scanRequest struct {
	Payload model.QRPayload `json:"payload" binding:"required"`
}

// Scan redeems a QR payload for the calling student.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Payload.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qr payload with session_id required"})
		return
	}

	user := auth.CurrentUser(c)
	studentID := user.StudentID
	if studentID == "" {
		studentID = user.ID
	}

	rec, err := h.attendance.Scan(c.Request.Context(), studentID, req.Payload, c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrQRCodeNotFound), errors.Is(err, attendance.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, attendance.ErrQRCodeExpired), errors.Is(err, attendance.ErrSessionClosed):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.serverError(c, err)
		}
		return
	}
	h.collector.RecordScan()
	c.JSON(http.StatusCreated, rec)
}

// ListAttendance returns scan records with basic filters, newest first.
func (h *Handler) ListAttendance(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.attRecords.ListRecords(c.Request.Context(), c.Query("class_id"), c.Query("student_id"), limit, offset)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
