package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dealroom/api/internal/infra/http/middleware"
)

const clientTimeout = 30 * time.Second

// Client calls the permission API.
type Client struct {
	baseURL    string
	actor      string
	httpClient *http.Client
	verbose    bool
	log        io.Writer
}

// NewClient creates a new API client. The actor is sent with every request
// and recorded in the audit log.
func NewClient(baseURL, actor string, verbose bool) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		actor:      actor,
		httpClient: &http.Client{Timeout: clientTimeout},
		verbose:    verbose,
		log:        os.Stderr,
	}
}

// Do performs a request and decodes a successful JSON response into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.actor != "" {
		req.Header.Set(middleware.HeaderActorID, c.actor)
	}

	c.debugf(">>> %s %s\n", method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.debugf("<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) debugf(format string, args ...any) {
	if c.verbose && c.log != nil {
		fmt.Fprintf(c.log, format, args...)
	}
}

// APIError is an error payload returned by the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []FieldError
}

// FieldError is one failed request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	for _, d := range e.Details {
		msg += fmt.Sprintf("; %s %s", d.Field, d.Message)
	}
	return msg
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
		apiErr.Details = parsed.Details
	}
	return apiErr
}
