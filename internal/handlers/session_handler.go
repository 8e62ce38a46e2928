package handlers

import (
	"context"
	"errors"
	"net/http"

	"speaking-service/internal/lifecycle"
	"speaking-service/internal/recorder"
	"speaking-service/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Service *service.SessionService
	Capture *recorder.RelayCapture
}

func NewSessionHandler(s *service.SessionService, capture *recorder.RelayCapture) *SessionHandler {
	return &SessionHandler{Service: s, Capture: capture}
}

// OpenSession opens (or resumes) the speaking session for the calling student.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req struct {
		TestID   string `json:"test_id" binding:"required"`
		TestName string `json:"test_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	studentID := c.GetHeader("X-Student-ID")
	if studentID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Student ID is required"})
		return
	}
	if req.TestName == "" {
		req.TestName = req.TestID
	}

	session, restored, err := h.Service.OpenSession(context.Background(), studentID, req.TestID, req.TestName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to open session",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session":  session,
		"restored": restored,
	})
}

// GetSession returns the full live session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.Service.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// GetSessionStatus returns the lifecycle position without question content.
func (h *SessionHandler) GetSessionStatus(c *gin.Context) {
	session, err := h.Service.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.SessionID,
		"current_step": session.CurrentStep,
		"attempt":      session.CurrentAttempt,
		"submitted":    session.Submitted,
		"last_error":   session.LastError,
	})
}

// StartRecording moves the session into the recording step.
func (h *SessionHandler) StartRecording(c *gin.Context) {
	if err := h.Service.StartRecording(context.Background(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Failed to start recording",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recording started"})
}

// StopRecording accepts the capture result from the device shell and runs the
// analysis.
func (h *SessionHandler) StopRecording(c *gin.Context) {
	var req struct {
		AudioRef        string `json:"audio_ref" binding:"required"`
		DurationSeconds int    `json:"duration_seconds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid capture result",
			"details": err.Error(),
		})
		return
	}
	h.Capture.SetResult(req.AudioRef, req.DurationSeconds)

	session, err := h.Service.StopRecording(context.Background(), c.Param("id"), nil)
	if err != nil {
		// capture problems are the client's to fix; only analysis failures
		// are gateway errors
		switch {
		case session == nil:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, lifecycle.ErrInvalidCapture) || errors.Is(err, recorder.ErrNoResult):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Unusable capture result",
				"details": err.Error(),
				"session": session,
			})
		default:
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "Analysis failed",
				"details": err.Error(),
				"session": session,
			})
		}
		return
	}
	c.JSON(http.StatusOK, session)
}

// Retry starts another attempt from the feedback screen.
func (h *SessionHandler) Retry(c *gin.Context) {
	session, err := h.Service.Retry(context.Background(), c.Param("id"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrMaxAttempts) {
			c.JSON(http.StatusConflict, gin.H{
				"error":        "Maximum attempts reached",
				"max_attempts": session.CurrentAttempt,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// ReRecord discards a failed recording and starts a fresh attempt.
func (h *SessionHandler) ReRecord(c *gin.Context) {
	session, err := h.Service.ReRecord(context.Background(), c.Param("id"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrMaxAttempts) {
			c.JSON(http.StatusConflict, gin.H{"error": "Maximum attempts reached"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// Resend re-runs the analysis with the cached payload.
func (h *SessionHandler) Resend(c *gin.Context) {
	session, err := h.Service.Resend(context.Background(), c.Param("id"), nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Resend failed",
			"details": err.Error(),
			"session": session,
		})
		return
	}
	c.JSON(http.StatusOK, session)
}

// Advance moves the session to the next question of the test once feedback
// for the current one is done.
func (h *SessionHandler) Advance(c *gin.Context) {
	var req struct {
		QuestionID string `json:"question_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	session, err := h.Service.Advance(context.Background(), c.Param("id"), req.QuestionID)
	if err != nil {
		status := http.StatusBadRequest
		if session == nil {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// DismissError clears the error overlay.
func (h *SessionHandler) DismissError(c *gin.Context) {
	session, err := h.Service.DismissError(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// Suspend persists the session snapshot (app backgrounding / unmount).
func (h *SessionHandler) Suspend(c *gin.Context) {
	if err := h.Service.Suspend(context.Background(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session suspended"})
}

// Complete finishes the session and triggers the final submission.
func (h *SessionHandler) Complete(c *gin.Context) {
	session, result, err := h.Service.Complete(context.Background(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Submission failed",
			"details": err.Error(),
			"session": session,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"result":  result,
	})
}

// AttemptHistory returns the stored attempts for the session's student/test.
func (h *SessionHandler) AttemptHistory(c *gin.Context) {
	session, err := h.Service.GetSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	history, err := h.Service.AttemptHistory(context.Background(), session.StudentID, session.TestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.SessionID,
		"attempts":   history,
	})
}
