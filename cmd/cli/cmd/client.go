package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hireplane/pkg/api"
)

// HireClient handles API calls to the hireplane controller.
type HireClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHireClient creates a new client with the given base URL.
func NewHireClient(baseURL string) *HireClient {
	return &HireClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *HireClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// doOp posts a lifecycle operation. Unmet preconditions come back as 404 or
// 409 with an OpResponse body; those are results, not errors.
func (c *HireClient) doOp(path string, body interface{}) (*api.OpResponse, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusConflict:
		var result api.OpResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return &result, nil
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
}

// CreateHire sends POST /hires to hire an agent with its first job.
func (c *HireClient) CreateHire(req api.CreateHireRequest) (*api.CreateHireResponse, error) {
	var result api.CreateHireResponse
	if err := c.do(http.MethodPost, "/hires", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddJob sends POST /hires/{id}/jobs to attach another job.
func (c *HireClient) AddJob(hireID string, req api.AddJobRequest) (*api.AddJobResponse, error) {
	var result api.AddJobResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/hires/%s/jobs", hireID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetHire sends GET /hires/{id}.
func (c *HireClient) GetHire(hireID string) (*api.HireResponse, error) {
	var result api.HireResponse
	if err := c.do(http.MethodGet, "/hires/"+hireID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /jobs/{id}.
func (c *HireClient) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, "/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs sends GET /jobs.
func (c *HireClient) ListJobs() ([]api.JobResponse, error) {
	var result []api.JobResponse
	if err := c.do(http.MethodGet, "/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// HireOp sends POST /hires/{id}/{verb} for pause, resume, and cancel.
func (c *HireClient) HireOp(hireID, verb string) (*api.OpResponse, error) {
	return c.doOp(fmt.Sprintf("/hires/%s/%s", hireID, verb), nil)
}

// PauseJob sends POST /jobs/{id}/pause.
func (c *HireClient) PauseJob(jobID string) (*api.OpResponse, error) {
	return c.doOp(fmt.Sprintf("/jobs/%s/pause", jobID), nil)
}

// ResumeJob sends POST /jobs/{id}/resume.
func (c *HireClient) ResumeJob(jobID string, req api.ResumeJobRequest) (*api.OpResponse, error) {
	return c.doOp(fmt.Sprintf("/jobs/%s/resume", jobID), req)
}

// Tick sends POST /internal/tick to run one dispatch pass.
func (c *HireClient) Tick() (*api.TickResponse, error) {
	var result api.TickResponse
	if err := c.do(http.MethodPost, "/internal/tick", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
