package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrollcall/internal/auth"
	"qrollcall/internal/identifier"
	"qrollcall/internal/model"
	"qrollcall/internal/student"
)

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// Approval toggles a student's approval flag. The notification that
// follows is best-effort; its failure shows up in warnings, never as an
// error status.
func (h *Handler) Approval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "approved is required"})
		return
	}

	admin := auth.CurrentUser(c)
	result, err := h.students.Approve(c.Request.Context(), admin.ID, c.Param("id"), *req.Approved)
	if err != nil {
		switch {
		case errors.Is(err, student.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		case errors.Is(err, student.ErrNotStudent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "target is not a student"})
		default:
			h.serverError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

type profileRequest struct {
	University string `json:"university" binding:"required"`
	RollNumber string `json:"roll_number"`
}

// CompleteProfile sets university/roll number for the calling student and
// assigns a generated identifier.
func (h *Handler) CompleteProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "university is required"})
		return
	}

	user := auth.CurrentUser(c)
	result, err := h.students.CompleteProfile(c.Request.Context(), user.ID, req.University, req.RollNumber)
	if err != nil {
		switch {
		case errors.Is(err, identifier.ErrRollRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, student.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			h.serverError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// PendingStudents lists students awaiting approval, oldest first.
func (h *Handler) PendingStudents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	users, err := h.users.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	c.JSON(http.StatusOK, gin.H{"students": users})
}
