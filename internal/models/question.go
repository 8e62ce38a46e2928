package models

// Question is one speaking prompt inside a test. Question content is owned by
// the test definition; it is never mutated after it is fetched.
type Question struct {
	ID                 string `bson:"_id,omitempty" json:"id"`
	TestID             string `bson:"test_id" json:"test_id"`
	Prompt             string `bson:"prompt" json:"prompt"`
	MinWords           int    `bson:"min_words" json:"min_words"`
	MaxDurationSeconds int    `bson:"max_duration_seconds" json:"max_duration_seconds"`
}
