package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/chronofact/chronofact/pkg/types"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", &types.NotFoundError{Kind: "entity", ID: "e1"}, http.StatusNotFound, "not_found"},
		{"validation", &types.ValidationError{Field: "valid_at", Reason: "required"}, http.StatusBadRequest, "invalid_request"},
		{"conflict", &types.ConflictError{Op: "merge", Reason: "cycle"}, http.StatusConflict, "conflict"},
		{"configuration", &types.ConfigurationError{Field: "extractor", Reason: "not configured"}, http.StatusServiceUnavailable, "not_configured"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Errorf("expected error code %q, got %v", tc.wantCode, body["error"])
			}
		})
	}
}

func TestRespondErrorWrappedError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrapped := errors.Join(errors.New("context"), &types.NotFoundError{Kind: "fact", ID: "f1"})
	respondError(c, wrapped)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected wrapped not-found to map to 404, got %d", w.Code)
	}
}
