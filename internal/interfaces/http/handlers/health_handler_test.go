package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", nil, NewChecker("db", func(ctx context.Context) error {
		t.Fatal("liveness must not run checks")
		return nil
	}))
	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_ReadinessReportsEachComponent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	report := func(component string, healthy bool) {
		mu.Lock()
		defer mu.Unlock()
		seen[component] = healthy
	}
	h := NewHealthHandler("dev", report,
		NewChecker("postgres", func(ctx context.Context) error { return nil }),
		NewChecker("minio", func(ctx context.Context) error { return errors.New(errors.ErrCodeStorageError, "timeout") }),
	)
	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]bool{"postgres": true, "minio": false}, seen)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Components["minio"].Error, "timeout")
}

func TestWriteAppError_MasksServerErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeAppError(w, errors.New(errors.ErrCodeDatabaseError, "password authentication failed for user matsel"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "COMMON_012", resp.Code)
	assert.Equal(t, "database error", resp.Message)
	assert.Empty(t, resp.Detail)
}

func TestWriteAppError_ForeignError(t *testing.T) {
	w := httptest.NewRecorder()
	writeAppError(w, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "COMMON_001")
}
