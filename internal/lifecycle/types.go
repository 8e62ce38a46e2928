package lifecycle

import (
	"time"

	"speaking-service/internal/models"
)

type Step string

const (
	StepPermission Step = "permission"
	StepRecording  Step = "recording"
	StepProcessing Step = "processing"
	StepFeedback   Step = "feedback"
	StepCompleted  Step = "completed"
)

// Session is the live state of one student's speaking attempt sequence for one
// test. The question is bound once when the session opens and never changes;
// the error overlay sits beside the step so a dismissed error drops the user
// back where they were.
type Session struct {
	SessionID string          `json:"session_id"`
	StudentID string          `json:"student_id"`
	TestID    string          `json:"test_id"`
	TestName  string          `json:"test_name"`
	Question  models.Question `json:"question"`

	CurrentStep    Step             `json:"current_step"`
	CurrentAttempt int              `json:"current_attempt"`
	Attempts       []models.Attempt `json:"attempts"`
	Feedback       *models.Feedback `json:"feedback,omitempty"`

	AudioRef        string `json:"audio_ref,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`

	LastError string `json:"last_error,omitempty"`
	Submitted bool   `json:"submitted"`
}

// Clone returns a copy safe to hand outside the owning lock. The attempt
// history gets its own backing slice, so appends to the live session cannot
// be observed through the copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Attempts = append([]models.Attempt(nil), s.Attempts...)
	return &c
}

// Config holds the tunables of the attempt lifecycle.
type Config struct {
	MaxAttempts int           `json:"max_attempts"`
	SnapshotTTL time.Duration `json:"snapshot_ttl"`
}

// DefaultConfig returns the production lifecycle configuration: three attempts
// per question, snapshots restorable for 24 hours.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		SnapshotTTL: 24 * time.Hour,
	}
}

// NewSession creates a fresh session at the permission step.
func NewSession(sessionID, studentID, testID, testName string, question models.Question) *Session {
	return &Session{
		SessionID:   sessionID,
		StudentID:   studentID,
		TestID:      testID,
		TestName:    testName,
		Question:    question,
		CurrentStep: StepPermission,
		Attempts:    []models.Attempt{},
	}
}
