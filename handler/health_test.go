package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	return p.err
}

func TestNewHealthHandler(t *testing.T) {
	handler := NewHealthHandler(nil, nil, false, "test", "1.0.0")
	require.NotNil(t, handler)
	assert.False(t, handler.startTime.IsZero())
}

func TestHealthHandler_CheckHealth(t *testing.T) {
	loaded := func() bool { return true }
	missing := func() bool { return false }

	tests := []struct {
		name           string
		keyLoaded      func() bool
		journal        Pinger
		openSearch     bool
		expectedStatus string
		journalStatus  string
		searchStatus   string
	}{
		{
			name:           "key loaded and no optional services",
			keyLoaded:      loaded,
			expectedStatus: "healthy",
			journalStatus:  "not_configured",
			searchStatus:   "not_configured",
		},
		{
			name:           "key loaded with healthy journal",
			keyLoaded:      loaded,
			journal:        fakePinger{},
			openSearch:     true,
			expectedStatus: "healthy",
			journalStatus:  "healthy",
			searchStatus:   "enabled",
		},
		{
			name:           "missing key degrades",
			keyLoaded:      missing,
			expectedStatus: "degraded",
			journalStatus:  "not_configured",
			searchStatus:   "not_configured",
		},
		{
			name:           "nil key func degrades",
			expectedStatus: "degraded",
			journalStatus:  "not_configured",
			searchStatus:   "not_configured",
		},
		{
			name:           "failing journal degrades",
			keyLoaded:      loaded,
			journal:        fakePinger{err: errors.New("disk I/O error")},
			expectedStatus: "degraded",
			journalStatus:  "unhealthy",
			searchStatus:   "not_configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.keyLoaded, tt.journal, tt.openSearch, "test", "1.0.0")

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.CheckHealth(w, req)

			// liveness never fails, the body carries the detail
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			resp := decodeResponse(t, w)
			assert.True(t, resp.Success)

			data, ok := resp.Data.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.expectedStatus, data["status"])
			assert.Equal(t, "test", data["environment"])
			assert.Equal(t, "1.0.0", data["version"])
			assert.NotNil(t, data["system"])

			services, ok := data["services"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.journalStatus, services["journal"].(map[string]any)["status"])
			assert.Equal(t, tt.searchStatus, services["opensearch"].(map[string]any)["status"])
		})
	}
}

func TestHealthHandler_CheckHealth_JournalError(t *testing.T) {
	handler := NewHealthHandler(func() bool { return true }, fakePinger{err: errors.New("database is locked")}, false, "test", "dev")

	w := httptest.NewRecorder()
	handler.CheckHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := decodeResponse(t, w)
	journal := resp.Data.(map[string]any)["services"].(map[string]any)["journal"].(map[string]any)
	assert.Equal(t, false, journal["healthy"])
	assert.Equal(t, "database is locked", journal["error"])
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatBytes(tt.input))
		})
	}
}

func TestCheckSystem(t *testing.T) {
	sys := checkSystem()
	require.NotNil(t, sys)
	assert.Greater(t, sys.GoRoutines, 0)
	assert.NotEmpty(t, sys.Alloc)
}
