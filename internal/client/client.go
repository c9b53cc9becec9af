// Package client provides a REST and WebSocket client for the diarist server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/diarist/internal/metrics"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx server response.
type APIError struct {
	Status  int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Client talks to the diarist server.
type Client struct {
	baseURL string
	http    *resty.Client
}

// New creates a client. An empty baseURL falls back to DIARIST_SERVER_URL and
// then http://localhost:3000. DIARIST_CLIENT_TIMEOUT overrides the 2m default.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DIARIST_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 2 * time.Minute // summaries and chat replies wait on the LLM
	if t := os.Getenv("DIARIST_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
}

// do runs req and decodes a JSON error body into *APIError on failure.
func (c *Client) do(ctx context.Context, method, path string, body, result any, query map[string]string) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetError(apiErr).
		SetQueryParams(query)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		if resp.StatusCode() == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
		}
		return apiErr
	}
	return nil
}

// =============================================================================
// TYPES (matching the server's JSON)
// =============================================================================

// Outcome is the result of a diary synthesis request.
type Outcome struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	DiaryDate string `json:"diary_date,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
}

// ChatReply is the server's answer to one chat message.
type ChatReply struct {
	Reply string   `json:"reply"`
	Docs  []string `json:"docs,omitempty"`
	Diary *Outcome `json:"diary,omitempty"`
}

// Diary is a stored diary entry.
type Diary struct {
	Diary   string `json:"diary"`
	Emotion string `json:"emotion"`
}

// DayEmotion is one calendar cell.
type DayEmotion struct {
	Date         string `json:"date"`
	FinalEmotion string `json:"finalEmotion"`
}

// BackfillResult summarizes a finished backfill.
type BackfillResult struct {
	Days    int `json:"days"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Job is a background backfill.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	UserID      string          `json:"user_id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Progress    int             `json:"progress"`
	Total       int             `json:"total"`
	Result      *BackfillResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Done reports whether the job has finished.
func (j Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// DiaryEvent announces a newly written diary.
type DiaryEvent struct {
	UserID    string `json:"user_id"`
	DiaryDate string `json:"diary_date"`
	Emotion   string `json:"emotion"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// Chat sends one message for userID.
func (c *Client) Chat(ctx context.Context, userID, message string) (*ChatReply, error) {
	var out ChatReply
	body := map[string]string{"user_id": userID, "message": message}
	if err := c.do(ctx, http.MethodPost, "/chat", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// WriteDiary asks the server to synthesize a diary now, or for date (YYYY-MM-DD) if set.
func (c *Client) WriteDiary(ctx context.Context, userID, date string) (*Outcome, error) {
	var out Outcome
	body := map[string]string{"user_id": userID}
	if date != "" {
		body["date"] = date
	}
	if err := c.do(ctx, http.MethodPost, "/writeDiary", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDiary fetches the diary for date. Returns an error wrapping ErrNotFound if none.
func (c *Client) GetDiary(ctx context.Context, userID, date string) (*Diary, error) {
	var out Diary
	q := map[string]string{"user_id": userID, "date": date}
	if err := c.do(ctx, http.MethodGet, "/diary", nil, &out, q); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calendar returns the stored emotions of a month.
func (c *Client) Calendar(ctx context.Context, userID string, year int, month time.Month) ([]DayEmotion, error) {
	var out struct {
		Emotions []DayEmotion `json:"emotions"`
	}
	q := map[string]string{
		"user_id": userID,
		"year":    strconv.Itoa(year),
		"month":   strconv.Itoa(int(month)),
	}
	if err := c.do(ctx, http.MethodGet, "/calendarEmotion", nil, &out, q); err != nil {
		return nil, err
	}
	return out.Emotions, nil
}

// SetDiaryTime stores the user's daily diary time and returns it normalized.
func (c *Client) SetDiaryTime(ctx context.Context, userID, diaryTime string) (string, error) {
	var out struct {
		DiaryTime string `json:"diaryTime"`
	}
	body := map[string]string{"user_id": userID, "diaryTime": diaryTime}
	if err := c.do(ctx, http.MethodPost, "/diaryTime", body, &out, nil); err != nil {
		return "", err
	}
	return out.DiaryTime, nil
}

// StartBackfill starts a background backfill over [from, to] (YYYY-MM-DD).
func (c *Client) StartBackfill(ctx context.Context, userID, from, to string) (*Job, error) {
	var out Job
	body := map[string]string{"user_id": userID, "from": from, "to": to}
	if err := c.do(ctx, http.MethodPost, "/backfill", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns the server's jobs, optionally only those of userID.
func (c *Client) ListJobs(ctx context.Context, userID string) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	var q map[string]string
	if userID != "" {
		q = map[string]string{"user_id": userID}
	}
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &out, q); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Stats returns the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var out metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchDiaries streams diary events for userID until ctx is done, the server
// closes the socket, or onEvent returns an error.
func (c *Client) WatchDiaries(ctx context.Context, userID string, onEvent func(DiaryEvent) error) error {
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/ws/diary")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = url.Values{"user_id": {userID}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev DiaryEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}
