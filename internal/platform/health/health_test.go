package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h)

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rr, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus string
		wantChecks map[string]interface{}
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all healthy",
			checks:     map[string]CheckFunc{"postgres": ok, "mongodb": ok},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]interface{}{"postgres": "ok", "mongodb": "ok"},
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"postgres": ok,
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]interface{}{"postgres": "ok", "redis": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, Handler(time.Second, tt.checks))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.NotEmpty(t, body["timestamp"])
			if tt.wantChecks == nil {
				assert.NotContains(t, body, "checks")
				return
			}
			assert.Equal(t, tt.wantChecks, body["checks"])
		})
	}
}

func TestHandler_Timeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	code, body := serve(t, Handler(10*time.Millisecond, map[string]CheckFunc{"kafka": slow}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]interface{}{"kafka": context.DeadlineExceeded.Error()}, body["checks"])
}
