package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/notification"
)

// Config configures a Client.
type Config struct {
	// BaseURL of the platform API gateway, e.g. http://localhost:8080.
	BaseURL string
	// Token is the opaque platform JWT sent as a bearer credential.
	Token string
	// Timeout bounds each request. Defaults to 15s.
	Timeout time.Duration
}

// Client is the HTTP client for the platform backend. It covers exactly the
// three collaborator endpoints the agent consumes: exam submission, the
// notification snapshot, and the best-effort read sync.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "api_client").Logger(),
	}, nil
}

// SubmitAttempt posts the collected answers for one attempt. The backend is
// called at most once per call; retry policy lives in the session
// controller, not here.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, answers map[string]string) (*SubmitResult, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	path := fmt.Sprintf("/exams/%s/submit", attemptID)

	var result SubmitResult
	if err := c.doRequest(ctx, http.MethodPost, path, submitRequest{Answers: answers}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchNotifications returns the full current inbox snapshot for userID.
func (c *Client) FetchNotifications(ctx context.Context, userID string) ([]notification.Record, error) {
	path := fmt.Sprintf("/notifications/user/%s", url.PathEscape(userID))

	var payloads []notification.Payload
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	recs := make([]notification.Record, 0, len(payloads))
	for _, p := range payloads {
		rec, err := p.Record()
		if err != nil {
			// A single bad row must not poison the snapshot.
			c.log.Warn().Err(err).Msg("Skipping invalid snapshot record")
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// MarkNotificationRead syncs an optimistic read to the server. Best-effort:
// callers log failures and never roll back local state.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	return c.doRequest(ctx, http.MethodPut, path, nil, nil)
}

// doRequest performs one JSON request/response round trip. Non-2xx statuses
// become *Error with Retryable set for 5xx.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	endpoint := c.baseURL.JoinPath(path).String()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.buildError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func (c *Client) buildError(resp *http.Response) error {
	apiErr := &Error{
		Status:    resp.StatusCode,
		Retryable: resp.StatusCode >= 500,
	}

	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
