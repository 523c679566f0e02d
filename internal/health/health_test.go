package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Health() error {
	return m.Called().Error(0)
}

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func serve(h http.HandlerFunc, path string) int {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestHealthChecker(t *testing.T) {
	t.Run("全部正常", func(t *testing.T) {
		store := new(MockStore)
		store.On("Health").Return(nil)
		backend := new(MockBackend)
		backend.On("Ping", mock.Anything).Return(nil)

		hc := NewHealthChecker(store, backend, nil)
		assert.Equal(t, http.StatusOK, serve(hc.LiveEndpoint, "/live"))
		assert.Equal(t, http.StatusOK, serve(hc.ReadyEndpoint, "/ready"))

		results := hc.CheckHealth()
		assert.Equal(t, "OK", results["state_store"])
		assert.Equal(t, "OK", results["backend"])
		assert.True(t, Healthy(results))
	})

	t.Run("后端不可达只影响就绪", func(t *testing.T) {
		store := new(MockStore)
		store.On("Health").Return(nil)
		backend := new(MockBackend)
		backend.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		hc := NewHealthChecker(store, backend, nil)
		assert.Equal(t, http.StatusOK, serve(hc.LiveEndpoint, "/live"))
		assert.Equal(t, http.StatusServiceUnavailable, serve(hc.ReadyEndpoint, "/ready"))

		results := hc.CheckHealth()
		assert.Contains(t, results["backend"], "connection refused")
		assert.False(t, Healthy(results))
	})

	t.Run("存储故障", func(t *testing.T) {
		store := new(MockStore)
		store.On("Health").Return(errors.New("disk full"))

		hc := NewHealthChecker(store, nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, serve(hc.LiveEndpoint, "/live"))

		results := hc.CheckHealth()
		assert.Equal(t, "NOT_CONFIGURED", results["backend"])
		assert.Contains(t, results["state_store"], "disk full")
		assert.False(t, Healthy(results))
	})
}
