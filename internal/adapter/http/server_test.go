package http_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/river-wqi-etl/internal/adapter/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, nil, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIRoutesAbsentWithoutAPI(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()

	t.Run("all ready", func(t *testing.T) {
		check := httpadapter.AllReady(&mockReadiness{}, httpadapter.ReadinessFunc(func(context.Context) error { return nil }))
		assert.NoError(t, check.CheckReadiness(ctx))
	})

	t.Run("one failing", func(t *testing.T) {
		storeDown := errors.New("store unreachable")
		check := httpadapter.AllReady(&mockReadiness{}, &mockReadiness{err: storeDown})
		err := check.CheckReadiness(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, storeDown)
	})

	t.Run("every failure reported", func(t *testing.T) {
		pipelineIdle := errors.New("pipeline has not assessed any readings yet")
		storeDown := errors.New("store unreachable")
		check := httpadapter.AllReady(&mockReadiness{err: pipelineIdle}, &mockReadiness{}, &mockReadiness{err: storeDown})
		err := check.CheckReadiness(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, pipelineIdle)
		assert.ErrorIs(t, err, storeDown)
	})

	t.Run("no checkers", func(t *testing.T) {
		assert.NoError(t, httpadapter.AllReady().CheckReadiness(ctx))
	})
}
