package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"speaking-service/internal/models"
)

// SubmissionClient sends the final test submission to the results API.
type SubmissionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSubmissionClient(baseURL string) *SubmissionClient {
	return &SubmissionClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit posts the assembled payload. The payload shape beyond the fields
// this service fills in is owned by the external API.
func (c *SubmissionClient) Submit(ctx context.Context, payload *models.SubmissionPayload) (*models.SubmissionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tests/speaking/submit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("submission service returned %d", resp.StatusCode)
	}

	var result models.SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode submission result: %w", err)
	}
	return &result, nil
}
