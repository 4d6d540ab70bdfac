package anti_fraud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yape-transaction-pipeline/internal/config"
	"github.com/yape-transaction-pipeline/internal/platform/health"
	"github.com/yape-transaction-pipeline/internal/platform/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		Application: config.ApplicationConfig{Env: "test", Name: "anti-fraud"},
		Server: config.ServerConfig{
			Port:            3001,
			ShutdownTimeout: time.Second,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
		},
	}
}

func TestServer_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	recorder, err := metrics.NewPrometheus("anti_fraud")
	require.NoError(t, err)
	recorder.RecordFraudDecision("approved")

	checks := map[string]health.CheckFunc{
		"kafka": func(context.Context) error { return nil },
	}
	srv := NewServer(logger, testConfig(), checks, recorder.Handler())

	t.Run("health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		srv.httpRouter.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"kafka":"ok"`)
	})

	t.Run("metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
		srv.httpRouter.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `anti_fraud_fraud_decisions_total{status="approved"} 1`)
	})
}

func TestServer_WithoutMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	checks := map[string]health.CheckFunc{
		"circuit": func(context.Context) error { return errors.New("open") },
	}
	srv := NewServer(logger, testConfig(), checks, nil)

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	srv.httpRouter.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	srv.httpRouter.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer(slog.New(slog.NewJSONHandler(os.Stdout, nil)), testConfig(), nil, nil)
	assert.NoError(t, srv.Stop(context.Background()))
}
