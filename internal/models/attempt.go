package models

import "time"

// Attempt is one completed record-analyze-feedback cycle. Attempts are
// append-only: once created they are never mutated, only reset together with
// the session.
type Attempt struct {
	ID            string          `bson:"_id,omitempty" json:"id"`
	StudentID     string          `bson:"student_id" json:"student_id"`
	TestID        string          `bson:"test_id" json:"test_id"`
	QuestionID    string          `bson:"question_id" json:"question_id"`
	AttemptNumber int             `bson:"attempt_number" json:"attempt_number"`
	AudioRef      string          `bson:"audio_ref" json:"audio_ref"`
	Transcript    string          `bson:"transcript" json:"transcript"`
	Analysis      *AnalysisResult `bson:"analysis" json:"analysis"`
	Feedback      *Feedback       `bson:"feedback" json:"feedback"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
}
