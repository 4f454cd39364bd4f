package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskdeck/internal/eventbus"
	"github.com/kazz187/taskdeck/internal/task"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithTimeout(time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_List(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tasks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		writeJSON(w, http.StatusOK, []task.Task{{ID: "1", Title: "A", Status: task.StatusPending}})
	})

	tasks, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []task.Task{{ID: "1", Title: "A", Status: task.StatusPending}}, tasks)
}

func TestClient_ListCoercesNonArray(t *testing.T) {
	bodies := map[string]string{
		"object": `{"items":[]}`,
		"null":   `null`,
		"empty":  ``,
		"text":   `hello`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			tasks, err := c.List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, tasks)
			assert.Empty(t, tasks)
		})
	}
}

func TestClient_Create(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var d task.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
		writeJSON(w, http.StatusCreated, task.Task{ID: "srv-1", Title: d.Title, Description: d.Description, Status: d.Status})
	})

	created, err := c.Create(context.Background(), task.Draft{Title: "X", Description: "d", Status: task.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, task.Task{ID: "srv-1", Title: "X", Description: "d", Status: task.StatusCompleted}, created)
}

func TestClient_UpdateSendsOnlyPatchedFields(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/tasks/a%2Fb", r.URL.EscapedPath())
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"title": "B"}, body)
		writeJSON(w, http.StatusOK, task.Task{ID: "a/b", Title: "B", Status: task.StatusPending})
	})

	updated, err := c.Update(context.Background(), "a/b", task.Patch{}.WithTitle("B"))
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Title)
}

func TestClient_Remove(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/tasks/7", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Remove(context.Background(), "7"))
}

func TestClient_HTTPError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "task not found"})
	})

	err := c.Remove(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindHTTP))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "task not found", apiErr.Message)
	assert.Contains(t, apiErr.Body, "task not found")
	assert.Equal(t, "API error: 404 Not Found: task not found", apiErr.Error())
	assert.Contains(t, apiErr.URL, "/api/tasks/missing")
}

func TestClient_HTTPErrorTextBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.List(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindHTTP, apiErr.Kind)
	assert.Empty(t, apiErr.Message)
	assert.Equal(t, "upstream exploded\n", apiErr.Body)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).List(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
}

func TestClient_DecodeError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 5`)
	})
	_, err := c.Create(context.Background(), task.Draft{Title: "x"})
	assert.True(t, IsKind(err, KindDecode), "got %v", err)
}

func TestClient_StreamEvents(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stream/events", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for i := range 3 {
			fmt.Fprintf(w, `{"id":"e%d","type":"task.created","task_id":"t%d"}`+"\n", i, i)
		}
		_, _ = io.WriteString(w, "not json\n\n")
	})

	var got []eventbus.Event
	err := c.StreamEvents(context.Background(), func(ev eventbus.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e2", got[2].ID)
	assert.Equal(t, eventbus.TaskCreated, got[0].Type)
}

func TestClient_StreamEventsStopsOnCallbackError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"1"}`+"\n"+`{"id":"2"}`+"\n")
	})
	stop := fmt.Errorf("stop")
	calls := 0
	err := c.StreamEvents(context.Background(), func(eventbus.Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{err: &Error{Kind: KindHTTP, Status: 500, StatusText: "Internal Server Error"}, want: "API error: 500 Internal Server Error"},
		{err: &Error{Kind: KindTimeout, Method: "GET", URL: "http://x/api/tasks"}, want: "request aborted or timed out: GET http://x/api/tasks"},
		{err: &Error{Kind: KindNetwork, Method: "GET", URL: "http://x", Err: io.EOF}, want: "network error: GET http://x: EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
