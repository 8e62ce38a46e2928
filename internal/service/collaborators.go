package service

import (
	"context"

	"speaking-service/internal/backend"
	"speaking-service/internal/models"
)

// Analyzer is the AI analysis collaborator. RetryCachedPayload re-sends the
// last payload for (student, test, question) without re-deriving it.
type Analyzer interface {
	Analyze(ctx context.Context, req backend.AnalyzeRequest, onProgress backend.ProgressFunc) (*models.AnalysisResult, error)
	RetryCachedPayload(ctx context.Context, studentID, testID, questionID string, onProgress backend.ProgressFunc) (*models.AnalysisResult, error)
}

// Submitter is the final-submission collaborator.
type Submitter interface {
	Submit(ctx context.Context, payload *models.SubmissionPayload) (*models.SubmissionResult, error)
}

// SnapshotStore persists session snapshots keyed by (student, test). Both the
// Mongo repository and the local file store satisfy it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *models.SessionSnapshot) error
	LoadSnapshot(ctx context.Context, studentID, testID string) (*models.SessionSnapshot, error)
	DeleteSnapshot(ctx context.Context, studentID, testID string) error
}

// AttemptStore keeps the append-only attempt history.
type AttemptStore interface {
	SaveAttempt(ctx context.Context, attempt *models.Attempt) error
	AttemptHistory(ctx context.Context, studentID, testID string) ([]models.Attempt, error)
}

// QuestionSource supplies the candidate questions of a test, in stable order.
type QuestionSource interface {
	FindByTestID(ctx context.Context, testID string) ([]models.Question, error)
}

// EventPublisher emits session lifecycle events. Optional; a nil publisher
// disables events.
type EventPublisher interface {
	Publish(eventType string, payload interface{}) error
}
