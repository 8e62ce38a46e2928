package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"speaking-service/internal/models"
)

// ErrMaxAttempts is returned when a retry would exceed the attempt cap. The
// cap is a hard stop: the request is refused and the count left as is.
var ErrMaxAttempts = errors.New("maximum attempts reached")

// ErrInvalidCapture is returned when a finished recording carries no usable
// audio. It marks a client-side capture problem, not a backend failure.
var ErrInvalidCapture = errors.New("capture produced no usable audio")

// Manager applies attempt lifecycle transitions. Transitions run in response
// to discrete events in order; only one asynchronous operation is outstanding
// at a time because the processing step refuses a new recording.
type Manager struct {
	config *Config
}

// NewManager creates a lifecycle manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{config: config}
}

// MaxAttempts exposes the configured attempt cap.
func (m *Manager) MaxAttempts() int {
	return m.config.MaxAttempts
}

// StartRecording moves permission -> recording. The caller is responsible for
// the microphone-permission check and for holding the capture handle.
func (m *Manager) StartRecording(s *Session) error {
	if s.CurrentStep != StepPermission && s.CurrentStep != StepRecording {
		return fmt.Errorf("cannot start recording from step %q", s.CurrentStep)
	}
	if s.CurrentAttempt == 0 {
		s.CurrentAttempt = 1
	}
	s.CurrentStep = StepRecording
	s.LastError = ""
	return nil
}

// FinishRecording moves recording -> processing once capture stops with a
// valid audio reference and duration.
func (m *Manager) FinishRecording(s *Session, audioRef string, durationSeconds int) error {
	if s.CurrentStep != StepRecording {
		return fmt.Errorf("cannot finish recording from step %q", s.CurrentStep)
	}
	if audioRef == "" || durationSeconds <= 0 {
		return fmt.Errorf("%w (ref=%q, duration=%ds)", ErrInvalidCapture, audioRef, durationSeconds)
	}
	s.AudioRef = audioRef
	s.DurationSeconds = durationSeconds
	s.CurrentStep = StepProcessing
	return nil
}

// AbortRecording resets a capture that failed to start or stop cleanly:
// back to permission with the failure surfaced as the error overlay.
func (m *Manager) AbortRecording(s *Session, err error) {
	s.AudioRef = ""
	s.DurationSeconds = 0
	s.CurrentStep = StepPermission
	m.Fail(s, err)
}

// CompleteProcessing moves processing -> feedback: the analysis result is
// wrapped into feedback and a new attempt is appended to the history.
func (m *Manager) CompleteProcessing(s *Session, result *models.AnalysisResult, now time.Time) (*models.Attempt, error) {
	if s.CurrentStep != StepProcessing {
		return nil, fmt.Errorf("cannot complete processing from step %q", s.CurrentStep)
	}
	if result == nil {
		return nil, errors.New("analysis returned no result")
	}

	s.Feedback = models.FeedbackFrom(result)
	s.LastError = ""

	attempt := models.Attempt{
		StudentID:     s.StudentID,
		TestID:        s.TestID,
		QuestionID:    s.Question.ID,
		AttemptNumber: s.CurrentAttempt,
		AudioRef:      s.AudioRef,
		Transcript:    result.Transcript,
		Analysis:      result,
		Feedback:      s.Feedback,
		CreatedAt:     now,
	}
	s.Attempts = append(s.Attempts, attempt)
	s.CurrentStep = StepFeedback
	return &attempt, nil
}

// Fail records a collaborator failure as the session's error overlay. The
// step is left untouched so a dismissed error resumes from where it happened,
// and the recorded audio reference survives for resend.
func (m *Manager) Fail(s *Session, err error) {
	if err == nil {
		return
	}
	s.LastError = err.Error()
}

// DismissError clears the error overlay without touching step or history.
func (m *Manager) DismissError(s *Session) {
	s.LastError = ""
}

// Retry moves feedback -> recording for another attempt. Refused, not
// clamped, once the cap is reached; history is preserved.
func (m *Manager) Retry(s *Session) error {
	if s.CurrentStep != StepFeedback {
		return fmt.Errorf("cannot retry from step %q", s.CurrentStep)
	}
	return m.nextAttempt(s)
}

// ReRecord discards the failed recording after a processing error and starts
// a fresh attempt. Counts against the cap like any other retry.
func (m *Manager) ReRecord(s *Session) error {
	if s.CurrentStep != StepProcessing {
		return fmt.Errorf("cannot re-record from step %q", s.CurrentStep)
	}
	return m.nextAttempt(s)
}

func (m *Manager) nextAttempt(s *Session) error {
	if s.CurrentAttempt >= m.config.MaxAttempts {
		return ErrMaxAttempts
	}
	s.CurrentAttempt++
	s.AudioRef = ""
	s.DurationSeconds = 0
	s.Feedback = nil
	s.LastError = ""
	s.CurrentStep = StepRecording
	return nil
}

// Resend keeps the session in processing with the error cleared so the cached
// payload can be re-submitted to analysis without re-capturing audio.
func (m *Manager) Resend(s *Session) error {
	if s.CurrentStep != StepProcessing {
		return fmt.Errorf("cannot resend from step %q", s.CurrentStep)
	}
	if s.AudioRef == "" {
		return errors.New("no recorded audio to resend")
	}
	s.LastError = ""
	return nil
}

// Complete moves feedback -> completed. The returned flag is true only the
// first time: the submitted guard makes final submission idempotent under a
// double trigger.
func (m *Manager) Complete(s *Session) (bool, error) {
	if s.Submitted {
		return false, nil
	}
	if s.CurrentStep != StepFeedback {
		return false, fmt.Errorf("cannot complete from step %q", s.CurrentStep)
	}
	if s.AudioRef == "" || s.Feedback == nil {
		return false, errors.New("missing audio or analysis, submission aborted")
	}
	s.Submitted = true
	s.CurrentStep = StepCompleted
	return true, nil
}

// Advance starts the attempt sequence for the next question of the outer
// test: feedback -> permission with transient state cleared. Attempt history
// for the finished question lives on in the attempt store.
func (m *Manager) Advance(s *Session, next models.Question) error {
	if s.CurrentStep != StepFeedback {
		return fmt.Errorf("cannot advance from step %q", s.CurrentStep)
	}
	s.Question = next
	s.CurrentStep = StepPermission
	s.CurrentAttempt = 0
	s.Attempts = []models.Attempt{}
	s.Feedback = nil
	s.AudioRef = ""
	s.DurationSeconds = 0
	s.LastError = ""
	return nil
}

// Snapshot serializes the session for persistence.
func (m *Manager) Snapshot(s *Session, now time.Time) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		SessionID:      s.SessionID,
		StudentID:      s.StudentID,
		TestID:         s.TestID,
		Question:       s.Question,
		CurrentStep:    string(s.CurrentStep),
		CurrentAttempt: s.CurrentAttempt,
		Attempts:       append([]models.Attempt(nil), s.Attempts...),
		Feedback:       s.Feedback,
		Submitted:      s.Submitted,
		SavedAt:        now,
	}
}

// Restore rebuilds a session from a snapshot. This is a pure display-state
// update: it never re-runs the completion path or any other side effect, so a
// restored feedback screen cannot trigger a duplicate submission. Snapshots
// older than the TTL are rejected and a fresh session should be started.
func (m *Manager) Restore(snap *models.SessionSnapshot, now time.Time) (*Session, bool) {
	if snap == nil || now.Sub(snap.SavedAt) > m.config.SnapshotTTL {
		return nil, false
	}

	s := &Session{
		SessionID:      snap.SessionID,
		StudentID:      snap.StudentID,
		TestID:         snap.TestID,
		Question:       snap.Question,
		CurrentStep:    Step(snap.CurrentStep),
		CurrentAttempt: snap.CurrentAttempt,
		Attempts:       snap.Attempts,
		Feedback:       snap.Feedback,
		Submitted:      snap.Submitted,
	}
	if s.CurrentAttempt < len(s.Attempts) {
		s.CurrentAttempt = len(s.Attempts)
	}
	if s.Attempts == nil {
		s.Attempts = []models.Attempt{}
	}
	if len(s.Attempts) > 0 {
		last := s.Attempts[len(s.Attempts)-1]
		s.AudioRef = last.AudioRef
	}
	return s, true
}
