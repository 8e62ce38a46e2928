package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"speaking-service/internal/models"
)

// ProgressFunc receives coarse progress notifications during analysis.
type ProgressFunc func(stage string)

// AnalyzeRequest is the payload sent to the AI speaking-analysis API. The
// response shape beyond the fields in models.AnalysisResult is owned by that
// API and passed through untouched.
type AnalyzeRequest struct {
	AudioRef   string `json:"audio_ref"`
	TestID     string `json:"test_id"`
	TestName   string `json:"test_name"`
	QuestionID string `json:"question_id"`
	StudentID  string `json:"student_id"`
}

func (r AnalyzeRequest) cacheKey() string {
	return r.StudentID + ":" + r.TestID + ":" + r.QuestionID
}

// AnalysisClient calls the external AI analysis service. Every request is
// cached by (student, test, question) before it is sent, so a failed call can
// be resent with the identical payload without re-capturing audio.
type AnalysisClient struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]AnalyzeRequest
}

func NewAnalysisClient(baseURL string) *AnalysisClient {
	return &AnalysisClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		cache:      make(map[string]AnalyzeRequest),
	}
}

// Analyze submits the recorded audio for analysis.
func (c *AnalysisClient) Analyze(ctx context.Context, req AnalyzeRequest, onProgress ProgressFunc) (*models.AnalysisResult, error) {
	c.mu.Lock()
	c.cache[req.cacheKey()] = req
	c.mu.Unlock()

	return c.post(ctx, req, onProgress)
}

// RetryCachedPayload re-submits the last payload for (student, test,
// question). The payload is reused as cached rather than re-derived.
func (c *AnalysisClient) RetryCachedPayload(ctx context.Context, studentID, testID, questionID string, onProgress ProgressFunc) (*models.AnalysisResult, error) {
	key := studentID + ":" + testID + ":" + questionID
	c.mu.Lock()
	req, ok := c.cache[key]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no cached analysis payload for %s", key)
	}
	return c.post(ctx, req, onProgress)
}

func (c *AnalysisClient) post(ctx context.Context, req AnalyzeRequest, onProgress ProgressFunc) (*models.AnalysisResult, error) {
	if onProgress != nil {
		onProgress("uploading")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/speaking/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned %d", resp.StatusCode)
	}

	if onProgress != nil {
		onProgress("analyzing")
	}

	// decode twice: typed fields for what this service reads, raw map for
	// everything the submission payload must carry through
	var buf bytes.Buffer
	var result models.AnalysisResult
	if err := json.NewDecoder(io.TeeReader(resp.Body, &buf)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &raw); err == nil {
		result.Raw = raw
	}

	if onProgress != nil {
		onProgress("done")
	}
	return &result, nil
}
