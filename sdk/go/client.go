package cooplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Coopline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Position represents the API position model (partial).
type Position struct {
	ID                string `json:"id"`
	EmployerID        string `json:"employer_id"`
	Title             string `json:"title"`
	Weeks             int    `json:"weeks"`
	HoursPerWeek      int    `json:"hours_per_week"`
	Status            string `json:"status"`
	SelectedStudentID string `json:"selected_student_id,omitempty"`
}

// Application represents the API application model.
type Application struct {
	ID                 string   `json:"id"`
	StudentID          string   `json:"student_id"`
	PositionID         string   `json:"position_id"`
	Status             string   `json:"status"`
	Verdict            string   `json:"verdict,omitempty"`
	EligibilityReasons []string `json:"eligibility_reasons,omitempty"`
	SubmittedAt        string   `json:"submitted_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// OpenPosition posts a position.
func (c *Client) OpenPosition(ctx context.Context, employerID, title, description string, weeks, hoursPerWeek int) (Position, error) {
	body := map[string]any{
		"employer_id":    employerID,
		"title":          title,
		"description":    description,
		"weeks":          weeks,
		"hours_per_week": hoursPerWeek,
	}
	var resp Position
	err := c.do(ctx, http.MethodPost, "v0/positions", body, &resp)
	return resp, err
}

// Apply submits an application for a student.
func (c *Client) Apply(ctx context.Context, positionID, studentID string) (Application, error) {
	body := map[string]any{"student_id": studentID}
	var resp Application
	endpoint := fmt.Sprintf("v0/positions/%s/applications", url.PathEscape(positionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SelectStudent marks the position pending for one student.
func (c *Client) SelectStudent(ctx context.Context, positionID, studentID, offerLetter string) (Application, error) {
	body := map[string]any{
		"selected_student_id": studentID,
	}
	if offerLetter != "" {
		body["offer_letter"] = offerLetter
	}
	var resp Application
	endpoint := fmt.Sprintf("v0/positions/%s/select", url.PathEscape(positionID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ClosePosition closes a position.
func (c *Client) ClosePosition(ctx context.Context, positionID string) (Position, error) {
	var resp Position
	endpoint := fmt.Sprintf("v0/positions/%s/close", url.PathEscape(positionID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// AcceptCoop accepts co-op credit on an application.
func (c *Client) AcceptCoop(ctx context.Context, applicationID string) (Application, error) {
	var resp Application
	endpoint := fmt.Sprintf("v0/applications/%s/accept", url.PathEscape(applicationID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// DeclineCoop declines co-op credit on an application.
func (c *Client) DeclineCoop(ctx context.Context, applicationID string) (Application, error) {
	var resp Application
	endpoint := fmt.Sprintf("v0/applications/%s/decline", url.PathEscape(applicationID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// SubmitSummary attaches a work summary.
func (c *Client) SubmitSummary(ctx context.Context, applicationID, summaryText string) (Application, error) {
	body := map[string]any{"summary_text": summaryText}
	var resp Application
	endpoint := fmt.Sprintf("v0/applications/%s/summary", url.PathEscape(applicationID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Grade assigns a grade to a summary.
func (c *Client) Grade(ctx context.Context, applicationID, grade, coordinatorID string) (Application, error) {
	body := map[string]any{"grade": grade, "coordinator_id": coordinatorID}
	var resp Application
	endpoint := fmt.Sprintf("v0/applications/%s/grade", url.PathEscape(applicationID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
