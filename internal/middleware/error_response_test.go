package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError())

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeTaskNotFound)
	}
	if body.Message != "Task not found" {
		t.Errorf("message = %q, want %q", body.Message, "Task not found")
	}
	if body.Category == "" || body.Action == "" {
		t.Errorf("category and action must be set: %+v", body)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}
