package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is where the analysis backend listens during development.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the DevCompass analysis backend. No client-side timeout
// is imposed; callers bound requests with their context.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL defaults to DefaultBaseURL
// if empty.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Setup asks the backend to start ingesting the repository at repoURL.
// The response body is ignored; completion is observed through Status.
func (c *Client) Setup(ctx context.Context, repoURL string) error {
	return c.do(ctx, http.MethodPost, "/setup", setupRequest{URL: repoURL}, nil)
}

// Status samples the state of the current ingestion job.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRepo fetches a single repository record.
func (c *Client) GetRepo(ctx context.Context, id string) (*RepoInfo, error) {
	var out RepoInfo
	if err := c.do(ctx, http.MethodGet, "/repo/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exists returns nil when the backend knows the repository and an error
// for any other outcome. The response body is not inspected.
func (c *Client) Exists(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodGet, "/repo/"+url.PathEscape(id), nil, nil)
}

// ListRepos returns every repository the backend has ingested.
func (c *Client) ListRepos(ctx context.Context) ([]RepoInfo, error) {
	var out []RepoInfo
	if err := c.do(ctx, http.MethodGet, "/get-all-repos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRepo removes a repository from the backend.
func (c *Client) DeleteRepo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/repo/"+url.PathEscape(id), nil, nil)
}

// Diagram returns the raw graph script for a repository's file structure.
// The script may still be wrapped in a fenced code block.
func (c *Client) Diagram(ctx context.Context, id string) (string, error) {
	var out diagramResponse
	if err := c.do(ctx, http.MethodGet, "/diagram/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.GraphScript, nil
}

// Chat asks the repository agent a question and returns its answer.
func (c *Client) Chat(ctx context.Context, id, message string) (string, error) {
	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/"+url.PathEscape(id), chatRequest{Message: message}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// ChatHistory returns previous questions and answers for a repository.
func (c *Client) ChatHistory(ctx context.Context, id string) ([]ChatHistoryItem, error) {
	var out []ChatHistoryItem
	if err := c.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(id)+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Podcast asks the backend to write an audio summary script.
func (c *Client) Podcast(ctx context.Context, id string) (string, error) {
	var out podcastResponse
	if err := c.do(ctx, http.MethodPost, "/podcast/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.Script, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		se := &StatusError{Code: resp.StatusCode}
		var detail errorResponse
		if json.Unmarshal(respBody, &detail) == nil && detail.Detail != "" {
			se.Detail = detail.Detail
		} else {
			se.Detail = strings.TrimSpace(string(respBody))
		}
		return se
	}

	if out == nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
