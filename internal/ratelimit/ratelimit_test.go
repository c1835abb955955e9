package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeStore struct {
	counts map[string]int
	err    error
}

func (f *fakeStore) Allow(key string, limit int, window time.Duration) (bool, int, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[key]++
	if f.counts[key] > limit {
		return false, int(window.Seconds()), nil
	}
	return true, 0, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	store := &fakeStore{}
	h := Middleware(Policy{Name: "jobs:enqueue", Limit: 2, Window: time.Minute}, store, zap.NewNop())(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	store := &fakeStore{}
	h := Middleware(Policy{Name: "jobs:enqueue", Limit: 1, Window: time.Minute}, store, zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestMiddlewareKeysPerClient(t *testing.T) {
	store := &fakeStore{}
	h := Middleware(Policy{Name: "jobs:enqueue", Limit: 1, Window: time.Minute}, store, zap.NewNop())(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, store.counts, 2)
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	h := Middleware(Policy{Name: "jobs:enqueue", Limit: 1, Window: time.Minute}, store, zap.NewNop())(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
