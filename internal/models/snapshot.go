package models

import "time"

// SessionSnapshot is the persisted form of a live session, keyed by
// (student_id, test_id). Snapshots older than the staleness cutoff are ignored
// on restore so an abandoned session cannot resurrect outdated question
// content.
type SessionSnapshot struct {
	SessionID      string    `bson:"session_id" json:"session_id"`
	StudentID      string    `bson:"student_id" json:"student_id"`
	TestID         string    `bson:"test_id" json:"test_id"`
	Question       Question  `bson:"question" json:"question"`
	CurrentStep    string    `bson:"current_step" json:"current_step"`
	CurrentAttempt int       `bson:"current_attempt" json:"current_attempt"`
	Attempts       []Attempt `bson:"attempts" json:"attempts"`
	Feedback       *Feedback `bson:"feedback" json:"feedback"`
	Submitted      bool      `bson:"submitted" json:"submitted"`
	SavedAt        time.Time `bson:"saved_at" json:"saved_at"`
}

// SnapshotKey is the storage key for a session snapshot.
func SnapshotKey(studentID, testID string) string {
	return studentID + ":" + testID
}

// SubmissionPayload is assembled at completion and handed to the submission
// backend. Beyond the identifying fields the shape is owned by the external
// API; Extra carries anything this service does not interpret.
type SubmissionPayload struct {
	StudentID    string                 `json:"student_id"`
	TestID       string                 `json:"test_id"`
	TestName     string                 `json:"test_name"`
	QuestionID   string                 `json:"question_id"`
	AudioRef     string                 `json:"audio_ref"`
	Transcript   string                 `json:"transcript"`
	OverallScore float64                `json:"overall_score"`
	Dimensions   map[string]float64     `json:"dimensions"`
	Attempts     int                    `json:"attempts"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// SubmissionResult is the submission backend's acknowledgement.
type SubmissionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
