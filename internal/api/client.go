// Package api is the HTTP client for the task service.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/internal/task"
)

const DefaultTimeout = 10 * time.Second

// maxLineBytes bounds a single event line on the stream.
const maxLineBytes = 1 << 20

// TasksAPI is the task service as seen by the store controller.
type TasksAPI interface {
	List(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, draft task.Draft) (task.Task, error)
	Update(ctx context.Context, id string, patch task.Patch) (task.Task, error)
	Remove(ctx context.Context, id string) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

var _ TasksAPI = (*Client)(nil)

type Option func(*Client)

// WithTimeout bounds each request, body included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient talks to the service at baseURL. An empty baseURL makes
// request paths relative, which only works behind a proxy that rewrites
// them.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns the server's tasks in server order. A 2xx body that is not
// a JSON array yields an empty list.
func (c *Client) List(ctx context.Context) ([]task.Task, error) {
	raw, err := c.send(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	tasks := []task.Task{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		slog.DebugContext(ctx, "task list response is not an array", "body_bytes", len(raw))
		return tasks, nil
	}
	if err := json.Unmarshal(trimmed, &tasks); err != nil {
		return nil, &Error{Kind: KindDecode, Method: http.MethodGet, URL: c.url("/api/tasks"), Body: string(raw), Err: err}
	}
	return tasks, nil
}

func (c *Client) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	var created task.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", draft, &created); err != nil {
		return task.Task{}, err
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	var updated task.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), patch, &updated); err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// StreamEvents calls fn for each event on the server's event stream until
// ctx is done, the server ends the stream, or fn returns an error. The
// client timeout does not apply.
func (c *Client) StreamEvents(ctx context.Context, fn func(eventbus.Event) error) error {
	u := c.url("/api/stream/events")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newTransportError(http.MethodGet, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newHTTPError(http.MethodGet, u, resp, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev eventbus.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.WarnContext(ctx, "skipping malformed event", "line", string(line), "error", err)
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return newTransportError(http.MethodGet, u, err)
	}
	return nil
}

func taskPath(id string) string {
	return "/api/tasks/" + url.PathEscape(id)
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do sends body as JSON and decodes a 2xx JSON response into out. out may
// be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindDecode, Method: method, URL: c.url(path), Body: string(respBody), Err: err}
	}
	return nil
}

// send performs one request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.url(path)
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(method, u, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(method, u, err)
	}
	slog.DebugContext(ctx, "api request", "method", method, "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(method, u, resp, respBody)
	}
	return respBody, nil
}
