package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"speaking-service/internal/models"
)

func analysisServer(t *testing.T, calls *[]AnalyzeRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		*calls = append(*calls, req)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"overall_score": 72.5,
			"transcript":    "I usually wake up early",
			"dimensions":    map[string]float64{"fluency": 70, "grammar": 75},
			"model_version": "asr-v3", // opaque extra the service must carry through
		})
	}))
}

func TestAnalyzeDecodesResult(t *testing.T) {
	var calls []AnalyzeRequest
	server := analysisServer(t, &calls)
	defer server.Close()

	client := NewAnalysisClient(server.URL)
	var stages []string
	result, err := client.Analyze(context.Background(), AnalyzeRequest{
		AudioRef:   "file://rec.m4a",
		TestID:     "t1",
		TestName:   "Unit 1",
		QuestionID: "q1",
		StudentID:  "s42",
	}, func(stage string) { stages = append(stages, stage) })
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.OverallScore != 72.5 {
		t.Errorf("overall score = %v, want 72.5", result.OverallScore)
	}
	if result.Transcript != "I usually wake up early" {
		t.Errorf("unexpected transcript %q", result.Transcript)
	}
	if result.Dimensions["grammar"] != 75 {
		t.Errorf("dimensions not decoded: %v", result.Dimensions)
	}
	if result.Raw["model_version"] != "asr-v3" {
		t.Error("opaque fields must survive in Raw")
	}
	if len(stages) == 0 || stages[0] != "uploading" {
		t.Errorf("expected progress notifications, got %v", stages)
	}
}

func TestRetryCachedPayloadReusesRequest(t *testing.T) {
	var calls []AnalyzeRequest
	server := analysisServer(t, &calls)
	defer server.Close()

	client := NewAnalysisClient(server.URL)
	req := AnalyzeRequest{AudioRef: "file://rec.m4a", TestID: "t1", TestName: "Unit 1", QuestionID: "q1", StudentID: "s42"}

	if _, err := client.Analyze(context.Background(), req, nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := client.RetryCachedPayload(context.Background(), "s42", "t1", "q1", nil); err != nil {
		t.Fatalf("RetryCachedPayload: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0] != calls[1] {
		t.Errorf("resend must reuse the cached payload: %+v vs %+v", calls[0], calls[1])
	}
}

func TestRetryWithoutCachedPayload(t *testing.T) {
	client := NewAnalysisClient("http://127.0.0.1:0")
	if _, err := client.RetryCachedPayload(context.Background(), "s1", "t1", "q1", nil); err == nil {
		t.Error("expected error when no payload is cached")
	}
}

func TestPayloadCachedEvenWhenCallFails(t *testing.T) {
	// first call fails at the network level; the payload must still be
	// cached so the user can resend once connectivity returns
	var calls []AnalyzeRequest
	server := analysisServer(t, &calls)
	server.Close() // refuse connections

	client := NewAnalysisClient(server.URL)
	req := AnalyzeRequest{AudioRef: "file://rec.m4a", TestID: "t1", QuestionID: "q1", StudentID: "s42"}
	if _, err := client.Analyze(context.Background(), req, nil); err == nil {
		t.Fatal("expected network error")
	}

	recovered := analysisServer(t, &calls)
	defer recovered.Close()
	client.baseURL = recovered.URL

	result, err := client.RetryCachedPayload(context.Background(), "s42", "t1", "q1", nil)
	if err != nil {
		t.Fatalf("RetryCachedPayload after recovery: %v", err)
	}
	if result.OverallScore != 72.5 {
		t.Errorf("unexpected result after resend: %v", result.OverallScore)
	}
}

func TestAnalyzeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAnalysisClient(server.URL)
	if _, err := client.Analyze(context.Background(), AnalyzeRequest{StudentID: "s1", TestID: "t1", QuestionID: "q1"}, nil); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestSubmitRoundTrip(t *testing.T) {
	var received models.SubmissionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(models.SubmissionResult{Success: true, Message: "recorded"})
	}))
	defer server.Close()

	client := NewSubmissionClient(server.URL)
	result, err := client.Submit(context.Background(), &models.SubmissionPayload{
		StudentID:    "s42",
		TestID:       "t1",
		QuestionID:   "q1",
		AudioRef:     "file://rec.m4a",
		Transcript:   "I usually wake up early",
		OverallScore: 72.5,
		Attempts:     2,
		Extra:        map[string]interface{}{"cheating_flags": []string{}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Success || result.Message != "recorded" {
		t.Errorf("unexpected result %+v", result)
	}
	if received.StudentID != "s42" || received.Attempts != 2 {
		t.Errorf("payload not passed through: %+v", received)
	}
}

func TestSubmitServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSubmissionClient(server.URL)
	if _, err := client.Submit(context.Background(), &models.SubmissionPayload{}); err == nil {
		t.Error("expected error on 502 response")
	}
}
