package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
)

const (
	// maxFetchRetries is how many times a failed report fetch is retried
	// before the poll tick is given up.
	maxFetchRetries = 3

	// retryBaseInterval is the initial backoff delay between retries.
	retryBaseInterval = 1 * time.Second

	// retryMaxInterval caps the exponential backoff delay.
	retryMaxInterval = 30 * time.Second
)

// Client talks to the external disaster-reports REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Interface

	// retryBase is the initial backoff delay, shortened in tests.
	retryBase time.Duration
}

// NewClient creates a client for the reports API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger log.Interface) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:    logger,
		retryBase: retryBaseInterval,
	}
}

// FetchReports retrieves the full report collection. Transient failures are
// retried with exponential backoff (base 1s, doubling, capped at 30s) up to
// three times; client errors are not retried.
func (c *Client) FetchReports(ctx context.Context) (*ReportsResponse, error) {
	var response *ReportsResponse

	operation := func() error {
		resp, err := c.getReports(ctx)
		if err != nil {
			return err
		}
		response = resp
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBase
	policy.MaxInterval = retryMaxInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxFetchRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"reportCount": len(response.Reports),
		"total":       response.Total,
	}).Debug("Successfully fetched reports")

	return response, nil
}

// getReports performs a single reports request without retries.
func (c *Client) getReports(ctx context.Context) (*ReportsResponse, error) {
	url := fmt.Sprintf("%s/reports/", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create reports request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reports request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var reportsResp ReportsResponse
	if err := json.NewDecoder(resp.Body).Decode(&reportsResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse reports response: %w", err))
	}

	return &reportsResp, nil
}

// UpdateStatus changes a report's status upstream. The reporter id identifies
// the session making the change; upstream rejects updates from non-creators.
func (c *Client) UpdateStatus(ctx context.Context, reportID string, status Status, reporterID string) (*StatusUpdateResult, error) {
	url := fmt.Sprintf("%s/reports/%s/status/", c.baseURL, reportID)

	payload, err := json.Marshal(map[string]string{
		"status":      string(status),
		"reporter_id": reporterID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create status update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status update request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result StatusUpdateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse status update response: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"reportId": reportID,
		"status":   status,
	}).Debug("Report status updated")

	return &result, nil
}

// FetchAISummary retrieves the AI-generated situation summary.
func (c *Client) FetchAISummary(ctx context.Context) (*AISummary, error) {
	url := fmt.Sprintf("%s/ai/summary/", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var summary AISummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}

	return &summary, nil
}

// FetchReporterID retrieves the session reporter identity used to determine
// edit ownership.
func (c *Client) FetchReporterID(ctx context.Context) (*ReporterSession, error) {
	url := fmt.Sprintf("%s/reporter/id/", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reporter id request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reporter id request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var session ReporterSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to parse reporter id response: %w", err)
	}

	return &session, nil
}

// checkStatus maps HTTP error responses to errors. Client errors are marked
// permanent so retry loops do not hammer the API with requests it has
// already rejected.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded (HTTP 429): too many requests")
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		var apiErr struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
			if apiErr.Detail != "" {
				return backoff.Permanent(fmt.Errorf("request rejected (HTTP %d): %s", resp.StatusCode, apiErr.Detail))
			}
			if apiErr.Message != "" {
				return backoff.Permanent(fmt.Errorf("request rejected (HTTP %d): %s", resp.StatusCode, apiErr.Message))
			}
		}
		return backoff.Permanent(fmt.Errorf("request rejected (HTTP %d)", resp.StatusCode))
	default:
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
}
