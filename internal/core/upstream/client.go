// Package upstream implements the task-board GraphQL dispatcher: it builds
// queries, issues the single network call, classifies failures into the
// notelens error taxonomy, and normalizes raw update records into Notes.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/engine"
	apperrors "github.com/notelens/notelens/internal/errors"
)

const (
	// DefaultBaseURL is the monday.com GraphQL endpoint.
	DefaultBaseURL = "https://api.monday.com/v2"

	// DefaultAPIVersion is sent in the API-Version header.
	DefaultAPIVersion = "2024-01"

	// DefaultTimeout bounds the single network call.
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of an upstream response is read.
	maxResponseBytes = 4 << 20

	updatesPerTask = 50
)

// Client is the request dispatcher for the upstream GraphQL API.
type Client struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Limiter    *engine.RateLimiter
	Timeout    time.Duration
	Clock      func() time.Time
}

// FetchNotes returns the normalized notes attached to a task.
func (c *Client) FetchNotes(ctx context.Context, taskID string, apiKey string) ([]core.Note, error) {
	id, err := ParseTaskID(taskID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`query { items (ids: [%d]) { id name updates (limit: %d) { id body text_body created_at creator { name photo_thumb } } } }`,
		id, updatesPerTask)

	body, err := c.execute(ctx, query, apiKey)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Items []struct {
				ID      string `json:"id"`
				Updates []struct {
					ID        string `json:"id"`
					Body      string `json:"body"`
					TextBody  string `json:"text_body"`
					CreatedAt string `json:"created_at"`
					Creator   *struct {
						Name       string `json:"name"`
						PhotoThumb string `json:"photo_thumb"`
					} `json:"creator"`
				} `json:"updates"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewUnknownError("malformed upstream response: " + err.Error())
	}

	if len(payload.Data.Items) == 0 {
		return nil, apperrors.NewResourceNotFoundError(fmt.Sprintf("task %d not found", id))
	}

	now := c.now()
	notes := make([]core.Note, 0, len(payload.Data.Items[0].Updates))
	for _, raw := range payload.Data.Items[0].Updates {
		note := core.Note{ID: raw.ID}
		if raw.Creator != nil {
			note.Author = raw.Creator.Name
			note.AuthorPhotoURL = raw.Creator.PhotoThumb
		}

		if raw.Body != "" {
			note.Body = HTMLToText(raw.Body)
		} else {
			note.Body = raw.TextBody
		}

		if createdAt, err := parseUpstreamTime(raw.CreatedAt); err == nil {
			note.CreatedAt = createdAt
			note.Age = RelativeAge(createdAt, now)
		}

		notes = append(notes, note)
	}

	return notes, nil
}

// FetchContent returns the non-note fields of a task row.
func (c *Client) FetchContent(ctx context.Context, taskID string, apiKey string) (*core.TaskContent, error) {
	id, err := ParseTaskID(taskID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`query { items (ids: [%d]) { id name group { title } board { name } column_values { id text } } }`,
		id)

	body, err := c.execute(ctx, query, apiKey)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Items []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Group *struct {
					Title string `json:"title"`
				} `json:"group"`
				Board *struct {
					Name string `json:"name"`
				} `json:"board"`
				ColumnValues []struct {
					ID   string `json:"id"`
					Text string `json:"text"`
				} `json:"column_values"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewUnknownError("malformed upstream response: " + err.Error())
	}

	if len(payload.Data.Items) == 0 {
		return nil, apperrors.NewResourceNotFoundError(fmt.Sprintf("task %d not found", id))
	}

	item := payload.Data.Items[0]
	content := &core.TaskContent{
		ID:      item.ID,
		Name:    item.Name,
		Columns: make(map[string]string, len(item.ColumnValues)),
	}
	if item.Group != nil {
		content.Group = item.Group.Title
	}
	if item.Board != nil {
		content.Board = item.Board.Name
	}
	for _, column := range item.ColumnValues {
		if column.Text != "" {
			content.Columns[column.ID] = column.Text
		}
	}

	return content, nil
}

// ValidateKey verifies a credential by asking the upstream who owns it.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) (*core.Account, error) {
	body, err := c.execute(ctx, `query { me { name email } }`, apiKey)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Me *core.Account `json:"me"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewUnknownError("malformed upstream response: " + err.Error())
	}
	if payload.Data.Me == nil || payload.Data.Me.Name == "" {
		return nil, apperrors.NewInvalidCredentialError("credential rejected by upstream")
	}

	return payload.Data.Me, nil
}

// execute issues the single network call and returns the raw body on
// success, or a classified taxonomy error.
func (c *Client) execute(ctx context.Context, query string, apiKey string) ([]byte, error) {
	if apiKey == "" {
		return nil, apperrors.NewCredentialMissingError("no api key configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.Limiter != nil {
		if err := c.Limiter.TryAcquire(); err != nil {
			return nil, apperrors.NewRateLimitedError("request budget exhausted, try again shortly")
		}
	}

	if timeout := c.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	requestBody, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, apperrors.NewUnknownError("encode query: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, apperrors.NewUnknownError("build request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("API-Version", c.apiVersion())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// Caller-initiated cancellation is not a taxonomy failure; the
		// response is simply discarded.
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperrors.NewNetworkError("upstream call failed: " + err.Error())
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewNetworkError("read upstream response: " + err.Error())
	}

	if classified := c.classify(resp.StatusCode, body); classified != nil {
		return nil, classified
	}

	if c.Limiter != nil {
		c.Limiter.RecordSuccess()
	}
	return body, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) apiVersion() string {
	if c.APIVersion != "" {
		return c.APIVersion
	}
	return DefaultAPIVersion
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// ParseTaskID validates that a task id is a positive integer.
func ParseTaskID(taskID string) (int64, error) {
	id, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("task id must be a positive number")
	}
	return id, nil
}

func parseUpstreamTime(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
