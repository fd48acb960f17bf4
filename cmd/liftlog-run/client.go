package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Client drives the workout API of a running LiftLog server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SessionView mirrors the server's session projection.
type SessionView struct {
	ID               string                 `json:"id"`
	TemplateName     string                 `json:"template_name"`
	State            string                 `json:"state"`
	CurrentStep      int                    `json:"current_step"`
	Step             models.WorkoutStep     `json:"step"`
	StepCount        int                    `json:"step_count"`
	LoggedSets       int                    `json:"logged_sets"`
	TotalSets        int                    `json:"total_sets"`
	Performed        []*models.PerformedSet `json:"performed"`
	StartedAt        time.Time              `json:"started_at"`
	TimerEndsAt      *time.Time             `json:"timer_ends_at,omitempty"`
	TimerRemainingMS *int64                 `json:"timer_remaining_ms,omitempty"`
}

// StartPayload is the request body for starting a workout.
type StartPayload struct {
	TemplateID      *string                `json:"template_id,omitempty"`
	Name            string                 `json:"name"`
	Blocks          []models.TemplateBlock `json:"blocks"`
	TemplateRestSec *int                   `json:"template_rest_sec,omitempty"`
}

// CompletionView is the server's response to a successful completion.
type CompletionView struct {
	Log     models.WorkoutLog `json:"log"`
	Records []RecordView      `json:"records"`
}

// RecordView is one personal record detected at completion.
type RecordView struct {
	ExerciseName string `json:"exercise_name"`
	NewWeight    bool   `json:"new_weight"`
	NewVolume    bool   `json:"new_volume"`
	New1RM       bool   `json:"new_1rm"`
	BestWeightG  int64  `json:"best_weight_g"`
	TotalVolume  int64  `json:"total_volume"`
	Est1RMG      *int64 `json:"est_1rm_g,omitempty"`
}

// RecoveryView mirrors the crash-recovery record endpoint.
type RecoveryView struct {
	SessionID    string    `json:"session_id"`
	TemplateName string    `json:"template_name"`
	StartedAt    time.Time `json:"started_at"`
	SavedAt      time.Time `json:"saved_at"`
	StateTag     string    `json:"state_tag"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return resp.StatusCode, fmt.Errorf("%s", apiErr.Error)
		}
		return resp.StatusCode, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Start begins a new workout session.
func (c *Client) Start(p StartPayload) (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/start", p, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Session fetches the active session, or nil when none exists.
func (c *Client) Session() (*SessionView, error) {
	var v SessionView
	status, err := c.do(http.MethodGet, "/api/v1/workout/", nil, &v)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Advance moves to the next step.
func (c *Client) Advance() (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/advance", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LogSet records a performed set for the current exercise step.
func (c *Client) LogSet(set models.PerformedSet) (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/sets", set, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SkipRest ends the running rest countdown immediately.
func (c *Client) SkipRest() (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/timer/skip", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AdjustRest shifts the running countdown by deltaSec seconds.
func (c *Client) AdjustRest(deltaSec int) (*SessionView, error) {
	var v SessionView
	body := map[string]int{"delta_sec": deltaSec}
	if _, err := c.do(http.MethodPost, "/api/v1/workout/timer/adjust", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Sync reconciles the countdown against the wall clock after the
// client was suspended or disconnected.
func (c *Client) Sync() error {
	_, err := c.do(http.MethodPost, "/api/v1/workout/timer/sync", nil, nil)
	return err
}

// FinishEarly jumps the session to its recap step.
func (c *Client) FinishEarly() (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/finish-early", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Complete runs the completion pipeline and clears the session.
func (c *Client) Complete() (*CompletionView, error) {
	var v CompletionView
	if _, err := c.do(http.MethodPost, "/api/v1/workout/complete", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Recovery fetches the fresh crash-recovery record, or nil when none.
func (c *Client) Recovery() (*RecoveryView, error) {
	var v RecoveryView
	status, err := c.do(http.MethodGet, "/api/v1/recovery/", nil, &v)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ResumeRecovery rebuilds a session from the crash-recovery record.
func (c *Client) ResumeRecovery() (*SessionView, error) {
	var v SessionView
	if _, err := c.do(http.MethodPost, "/api/v1/recovery/resume", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DiscardRecovery drops the crash-recovery record.
func (c *Client) DiscardRecovery() error {
	_, err := c.do(http.MethodDelete, "/api/v1/recovery/", nil, nil)
	return err
}
