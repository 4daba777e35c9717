package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/mediashare/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *model.APIError
	}{
		{"validation", http.StatusBadRequest, model.NewValidationError("title", "required")},
		{"not owner", http.StatusForbidden, model.NewNotOwnerError(model.KindVideo)},
		{"not found", http.StatusNotFound, model.NewContentNotFoundError(model.KindTweet, "abc")},
		{"upstream", http.StatusBadGateway, model.NewUpstreamMediaError("timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}

			body := decodeErrorBody(t, w)
			want := ErrorResponseBody{
				Status:   tt.status,
				Code:     tt.err.Code,
				Message:  tt.err.Message,
				Category: tt.err.Category,
				Action:   tt.err.Action,
			}
			if body != want {
				t.Errorf("body = %+v, want %+v", body, want)
			}
		})
	}
}

func TestWriteErrorResponse_NilError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	body := decodeErrorBody(t, w)
	if w.Code != http.StatusInternalServerError || body.Status != http.StatusInternalServerError {
		t.Errorf("status = %d / body %d", w.Code, body.Status)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestErrorResponseBody_JSONKeys(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, key := range []string{"status", "code", "message", "category", "action"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key: %s", key)
		}
	}
}
