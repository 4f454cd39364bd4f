package cerr_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskdeck/pkg/cerr"
	"github.com/kazz187/taskdeck/pkg/storage"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	cerr.NewJSONResponseChiMiddleware()(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) cerr.Body {
	t.Helper()
	var body cerr.Body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMiddleware_Response(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, map[string]string{"id": "1"})
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
}

func TestMiddleware_NoContent(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		cerr.SetNoContent(r.Context())
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestMiddleware_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "cerr error",
			err:        cerr.NewError(cerr.NotFound, "task not found", nil),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantMsg:    "task not found",
		},
		{
			name:       "wrapped cerr error",
			err:        fmt.Errorf("handler: %w", cerr.NewError(cerr.AlreadyExists, "exists", nil)),
			wantStatus: http.StatusConflict,
			wantCode:   "already_exists",
			wantMsg:    "exists",
		},
		{
			name:       "plain error",
			err:        errors.New("secret detail"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "unknown",
			wantMsg:    "unknown error",
		},
		{
			name:       "canceled",
			err:        context.Canceled,
			wantStatus: 499,
			wantCode:   "canceled",
			wantMsg:    "connection closed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
				cerr.SetJSONError(r.Context(), tt.err)
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestNewInvalidField(t *testing.T) {
	rec := serve(t, func(w http.ResponseWriter, r *http.Request) {
		cerr.SetJSONError(r.Context(), cerr.NewInvalidField("title", "title is required"))
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid_argument", body.Code)
	assert.Equal(t, []cerr.Violation{{Field: "title", Message: "title is required"}}, body.Violations)
}

func TestNewError_Stack(t *testing.T) {
	assert.NotEmpty(t, cerr.NewError(cerr.Internal, "server error", nil).Stack)
	assert.Empty(t, cerr.NewError(cerr.InvalidArgument, "bad", nil).Stack)
}

func TestWrapStorageError(t *testing.T) {
	missing := fmt.Errorf("tasks/1.yaml: %w", storage.ErrNotFound)

	var ce *cerr.Error
	require.ErrorAs(t, cerr.WrapStorageError(cerr.StorageRead, "task 1", missing), &ce)
	assert.Equal(t, cerr.NotFound, ce.Code)
	assert.Equal(t, "task 1 not found", ce.Msg)

	require.ErrorAs(t, cerr.WrapStorageError(cerr.StorageWrite, "task 1", missing), &ce)
	assert.Equal(t, cerr.Internal, ce.Code)
	assert.ErrorIs(t, ce, storage.ErrNotFound)
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "failed_precondition", cerr.FailedPrecondition.String())
	assert.Equal(t, "unknown", cerr.Code(99).String())
	assert.Equal(t, http.StatusInternalServerError, cerr.Code(99).HTTPCode())
}
