package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"speaking-service/internal/backend"
	"speaking-service/internal/event"
	"speaking-service/internal/lifecycle"
	"speaking-service/internal/models"
	"speaking-service/internal/recorder"
	"speaking-service/internal/selection"

	"github.com/google/uuid"
)

// SessionService orchestrates speaking-test sessions: deterministic question
// selection, the attempt lifecycle, the capture handle, the analysis and
// submission backends, and snapshot persistence. Live sessions are held in an
// in-memory registry keyed by session ID, one per (student, test).
//
// s.mu guards the registry maps and every field of the live sessions; it is
// released around backend calls. Public methods hand out clones, never the
// live pointer, so callers can read freely while an analysis is in flight.
type SessionService struct {
	manager   *lifecycle.Manager
	recorder  *recorder.Manager
	analyzer  Analyzer
	submitter Submitter
	snapshots SnapshotStore
	attempts  AttemptStore
	questions QuestionSource
	publisher EventPublisher

	now func() time.Time

	mu      sync.Mutex
	live    map[string]*lifecycle.Session
	handles map[string]*recorder.Handle
	byKey   map[string]string
}

func NewSessionService(
	manager *lifecycle.Manager,
	rec *recorder.Manager,
	analyzer Analyzer,
	submitter Submitter,
	snapshots SnapshotStore,
	attempts AttemptStore,
	questions QuestionSource,
	publisher EventPublisher,
) *SessionService {
	return &SessionService{
		manager:   manager,
		recorder:  rec,
		analyzer:  analyzer,
		submitter: submitter,
		snapshots: snapshots,
		attempts:  attempts,
		questions: questions,
		publisher: publisher,
		now:       time.Now,
		live:      make(map[string]*lifecycle.Session),
		handles:   make(map[string]*recorder.Handle),
		byKey:     make(map[string]string),
	}
}

// OpenSession starts (or resumes) the session for a student and test. A fresh
// snapshot restores the previous state as pure display state; otherwise the
// question is selected deterministically and bound for the session's
// lifetime. The second return value reports whether state was restored.
func (s *SessionService) OpenSession(ctx context.Context, studentID, testID, testName string) (*lifecycle.Session, bool, error) {
	key := models.SnapshotKey(studentID, testID)

	s.mu.Lock()
	if id, ok := s.byKey[key]; ok {
		view := s.live[id].Clone()
		s.mu.Unlock()
		return view, true, nil
	}
	s.mu.Unlock()

	snap, err := s.snapshots.LoadSnapshot(ctx, studentID, testID)
	if err != nil {
		// persistence must never block the flow; fall through to a fresh session
		log.Printf("load snapshot for %s: %v", key, err)
		snap = nil
	}
	if session, ok := s.manager.Restore(snap, s.now()); ok {
		session.TestName = testName
		view := s.register(key, session)
		s.publish(event.SessionRestored, sessionEvent(view))
		return view, true, nil
	}

	candidates, err := s.questions.FindByTestID(ctx, testID)
	if err != nil {
		return nil, false, fmt.Errorf("load questions for test %s: %w", testID, err)
	}
	question, err := selection.SelectQuestion(candidates, testID, studentID)
	if err != nil {
		return nil, false, err
	}

	session := lifecycle.NewSession(uuid.NewString(), studentID, testID, testName, question)
	view := s.register(key, session)
	s.publish(event.SessionOpened, sessionEvent(view))
	return view, false, nil
}

func (s *SessionService) register(key string, session *lifecycle.Session) *lifecycle.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[session.SessionID] = session
	s.byKey[key] = session.SessionID
	return session.Clone()
}

// lookup returns the live session pointer. Mutating or reading it requires
// holding s.mu.
func (s *SessionService) lookup(sessionID string) (*lifecycle.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.live[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return session, nil
}

// GetSession returns a copy of a live session's current state.
func (s *SessionService) GetSession(sessionID string) (*lifecycle.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.live[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return session.Clone(), nil
}

// StartRecording acquires the exclusive capture handle and moves the session
// into the recording step. A denied or busy capture surfaces as the error
// overlay with the session left where it was.
func (s *SessionService) StartRecording(ctx context.Context, sessionID string) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	handle, err := s.recorder.Acquire(sessionID)
	if err != nil {
		s.mu.Lock()
		s.manager.Fail(session, err)
		view := session.Clone()
		s.mu.Unlock()
		s.publish(event.SessionErrored, sessionEvent(view))
		return err
	}

	s.mu.Lock()
	if err := s.manager.StartRecording(session); err != nil {
		s.mu.Unlock()
		handle.Release()
		return err
	}
	s.handles[sessionID] = handle
	view := session.Clone()
	s.mu.Unlock()

	if err := handle.Start(); err != nil {
		s.releaseHandle(sessionID)
		s.mu.Lock()
		s.manager.AbortRecording(session, err)
		s.mu.Unlock()
		return err
	}

	s.publish(event.RecordingStarted, sessionEvent(view))
	return nil
}

func (s *SessionService) releaseHandle(sessionID string) {
	s.mu.Lock()
	handle := s.handles[sessionID]
	delete(s.handles, sessionID)
	s.mu.Unlock()
	if handle != nil {
		handle.Release()
	}
}

// StopRecording ends the capture and runs the analysis. A failed analysis
// leaves the session in processing with the error overlay set and the audio
// reference intact, so the user can re-record or resend.
func (s *SessionService) StopRecording(ctx context.Context, sessionID string, onProgress backend.ProgressFunc) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	handle := s.handles[sessionID]
	s.mu.Unlock()
	if handle == nil {
		return nil, fmt.Errorf("session %s has no active recording", sessionID)
	}

	audioRef, durationSeconds, err := handle.Stop()
	s.releaseHandle(sessionID)
	if err != nil {
		s.mu.Lock()
		s.manager.AbortRecording(session, err)
		view := session.Clone()
		s.mu.Unlock()
		return view, err
	}

	s.mu.Lock()
	if err := s.manager.FinishRecording(session, audioRef, durationSeconds); err != nil {
		s.manager.AbortRecording(session, err)
		view := session.Clone()
		s.mu.Unlock()
		return view, err
	}
	req := backend.AnalyzeRequest{
		AudioRef:   session.AudioRef,
		TestID:     session.TestID,
		TestName:   session.TestName,
		QuestionID: session.Question.ID,
		StudentID:  session.StudentID,
	}
	s.mu.Unlock()

	// the long analysis call runs outside the lock; the processing step
	// itself refuses a second capture in the meantime
	result, err := s.analyzer.Analyze(ctx, req, onProgress)
	if err != nil {
		s.mu.Lock()
		s.manager.Fail(session, err)
		view := session.Clone()
		s.mu.Unlock()
		s.publish(event.SessionErrored, sessionEvent(view))
		return view, err
	}

	return s.applyAnalysis(ctx, session, result)
}

func (s *SessionService) applyAnalysis(ctx context.Context, session *lifecycle.Session, result *models.AnalysisResult) (*lifecycle.Session, error) {
	s.mu.Lock()
	attempt, err := s.manager.CompleteProcessing(session, result, s.now())
	if err != nil {
		s.manager.Fail(session, err)
		view := session.Clone()
		s.mu.Unlock()
		return view, err
	}
	view := session.Clone()
	s.mu.Unlock()

	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		// history persistence is best effort; the live session keeps the attempt
		log.Printf("save attempt %d for session %s: %v", attempt.AttemptNumber, view.SessionID, err)
	}
	s.publish(event.AttemptAnalyzed, sessionEvent(view))
	return view, nil
}

// Resend re-runs the analysis with the cached payload, without re-capturing.
func (s *SessionService) Resend(ctx context.Context, sessionID string, onProgress backend.ProgressFunc) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.manager.Resend(session); err != nil {
		view := session.Clone()
		s.mu.Unlock()
		return view, err
	}
	studentID, testID, questionID := session.StudentID, session.TestID, session.Question.ID
	s.mu.Unlock()

	result, err := s.analyzer.RetryCachedPayload(ctx, studentID, testID, questionID, onProgress)
	if err != nil {
		s.mu.Lock()
		s.manager.Fail(session, err)
		view := session.Clone()
		s.mu.Unlock()
		s.publish(event.SessionErrored, sessionEvent(view))
		return view, err
	}

	return s.applyAnalysis(ctx, session, result)
}

// Retry starts another attempt from the feedback screen, refused once the cap
// is reached.
func (s *SessionService) Retry(ctx context.Context, sessionID string) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	err = s.manager.Retry(session)
	view := session.Clone()
	s.mu.Unlock()
	if err != nil {
		return view, err
	}
	s.publish(event.AttemptRetried, sessionEvent(view))
	return view, nil
}

// ReRecord discards the failed recording after a processing error and starts
// a fresh attempt.
func (s *SessionService) ReRecord(ctx context.Context, sessionID string) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	err = s.manager.ReRecord(session)
	view := session.Clone()
	s.mu.Unlock()
	if err != nil {
		return view, err
	}
	s.publish(event.AttemptRetried, sessionEvent(view))
	return view, nil
}

// DismissError clears the error overlay, resuming from the pre-error step.
func (s *SessionService) DismissError(sessionID string) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.manager.DismissError(session)
	view := session.Clone()
	s.mu.Unlock()
	return view, nil
}

// Advance binds the next question of the outer test once feedback for the
// current one is done. The per-question attempt state resets; the finished
// question's history stays in the attempt store.
func (s *SessionService) Advance(ctx context.Context, sessionID, questionID string) (*lifecycle.Session, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	testID := session.TestID
	s.mu.Unlock()

	candidates, err := s.questions.FindByTestID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load questions for test %s: %w", testID, err)
	}
	var next *models.Question
	for i := range candidates {
		if candidates[i].ID == questionID {
			next = &candidates[i]
			break
		}
	}
	if next == nil {
		return nil, fmt.Errorf("question %s not in test %s", questionID, testID)
	}

	s.mu.Lock()
	err = s.manager.Advance(session, *next)
	view := session.Clone()
	s.mu.Unlock()
	if err != nil {
		return view, err
	}
	s.publish(event.QuestionAdvanced, sessionEvent(view))
	return view, nil
}

// Complete finishes the session and performs the final submission exactly
// once. A submission failure keeps the feedback and local state so the
// student can retry later; success clears the persisted snapshot.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (*lifecycle.Session, *models.SubmissionResult, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	first, err := s.manager.Complete(session)
	if err != nil {
		s.manager.Fail(session, err)
		view := session.Clone()
		s.mu.Unlock()
		return view, nil, err
	}
	if !first {
		view := session.Clone()
		s.mu.Unlock()
		return view, &models.SubmissionResult{Success: true, Message: "already submitted"}, nil
	}

	last := session.Attempts[len(session.Attempts)-1]
	payload := &models.SubmissionPayload{
		StudentID:    session.StudentID,
		TestID:       session.TestID,
		TestName:     session.TestName,
		QuestionID:   session.Question.ID,
		AudioRef:     last.AudioRef,
		Transcript:   last.Transcript,
		OverallScore: session.Feedback.Score,
		Dimensions:   session.Feedback.Dimensions,
		Attempts:     len(session.Attempts),
	}
	if last.Analysis != nil {
		payload.Extra = last.Analysis.Raw
	}
	s.mu.Unlock()

	result, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		// roll the guard back: the attempt survives locally and submission
		// can be retried once the service is reachable again
		s.mu.Lock()
		session.Submitted = false
		session.CurrentStep = lifecycle.StepFeedback
		s.manager.Fail(session, err)
		snap := s.manager.Snapshot(session, s.now())
		view := session.Clone()
		s.mu.Unlock()
		if serr := s.snapshots.SaveSnapshot(ctx, snap); serr != nil {
			log.Printf("save snapshot for session %s: %v", sessionID, serr)
		}
		s.publish(event.SessionErrored, sessionEvent(view))
		return view, nil, err
	}

	s.mu.Lock()
	view := session.Clone()
	s.mu.Unlock()
	if err := s.snapshots.DeleteSnapshot(ctx, view.StudentID, view.TestID); err != nil {
		log.Printf("delete snapshot for session %s: %v", sessionID, err)
	}
	s.publish(event.SessionCompleted, sessionEvent(view))
	return view, result, nil
}

// Suspend persists the session snapshot, called on app backgrounding and
// unmount. Persistence failures are logged and swallowed: saving state must
// never block the test-taking flow.
func (s *SessionService) Suspend(ctx context.Context, sessionID string) error {
	session, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	snap := s.manager.Snapshot(session, s.now())
	view := session.Clone()
	s.mu.Unlock()

	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		log.Printf("save snapshot for session %s: %v", sessionID, err)
	}
	s.publish(event.SessionSuspended, sessionEvent(view))
	return nil
}

// AttemptHistory returns the stored attempts for a student and test, ordered
// by attempt number.
func (s *SessionService) AttemptHistory(ctx context.Context, studentID, testID string) ([]models.Attempt, error) {
	return s.attempts.AttemptHistory(ctx, studentID, testID)
}

func (s *SessionService) publish(eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(eventType, payload); err != nil {
		log.Printf("publish %s: %v", eventType, err)
	}
}

func sessionEvent(session *lifecycle.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id":   session.SessionID,
		"student_id":   session.StudentID,
		"test_id":      session.TestID,
		"question_id":  session.Question.ID,
		"current_step": session.CurrentStep,
		"attempt":      session.CurrentAttempt,
	}
}
