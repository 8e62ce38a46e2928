package models

// PassThreshold is the overall-score percentage at or above which an attempt
// counts as passed.
const PassThreshold = 60.0

// AnalysisResult is what comes back from the AI analysis backend. Only
// OverallScore, Transcript and the dimension sub-scores are read by this
// service; everything else travels in Raw untouched so the submission payload
// can carry it through verbatim.
type AnalysisResult struct {
	OverallScore float64                `bson:"overall_score" json:"overall_score"`
	Transcript   string                 `bson:"transcript" json:"transcript"`
	Dimensions   map[string]float64     `bson:"dimensions" json:"dimensions"`
	Raw          map[string]interface{} `bson:"raw,omitempty" json:"raw,omitempty"`
}

// Feedback is the user-facing wrap of an AnalysisResult.
type Feedback struct {
	Score      float64            `bson:"score" json:"score"`
	Passed     bool               `bson:"passed" json:"passed"`
	Dimensions map[string]float64 `bson:"dimensions" json:"dimensions"`
	Transcript string             `bson:"transcript" json:"transcript"`
}

// FeedbackFrom builds the feedback shown for an analysis result, applying the
// pass threshold.
func FeedbackFrom(result *AnalysisResult) *Feedback {
	return &Feedback{
		Score:      result.OverallScore,
		Passed:     result.OverallScore >= PassThreshold,
		Dimensions: result.Dimensions,
		Transcript: result.Transcript,
	}
}
