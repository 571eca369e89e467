package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func okEnvelope(w http.ResponseWriter, data interface{}) {
	payload, _ := json.Marshal(data)
	json.NewEncoder(w).Encode(dtos.Response{Code: 200, Message: "success", Data: payload})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *SessionStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, session.SetSession(entities.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         entities.User{Id: "u-test", Nickname: "Tester"},
	}))

	client, err := NewClient(Config{
		BaseUrl:      srv.URL,
		RetryBackoff: time.Millisecond,
	}, session)
	require.NoError(t, err)
	return client, session
}

func TestGetServesFromCache(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		okEnvelope(w, map[string]string{"value": "cached"})
	}))

	first, err := client.Get(context.Background(), "/thing", nil)
	require.NoError(t, err)
	second, err := client.Get(context.Background(), "/thing", nil)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, int32(1), hits.Load())
}

func TestWithoutCacheAlwaysHitsServer(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		okEnvelope(w, nil)
	}))

	_, err := client.Get(context.Background(), "/fresh", nil, WithoutCache())
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "/fresh", nil, WithoutCache())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}

func TestConcurrentGetsShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(100 * time.Millisecond)
		okEnvelope(w, map[string]int{"n": 1})
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), "/dedup", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		okEnvelope(w, map[string]bool{"ok": true})
	}))

	_, err := client.Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Get(context.Background(), "/down", nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(3), hits.Load(), "no fourth attempt")
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Get(context.Background(), "/missing", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestApplicationErrorInsideOKResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dtos.Response{Code: 4002, Message: "battle already ended"})
	}))

	_, err := client.Post(context.Background(), "/pk/battles/b1/answer", nil)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindApplication, apiErr.Kind)
	assert.Equal(t, 4002, apiErr.Code)
	assert.Equal(t, "battle already ended", apiErr.Message)
}

func TestRefreshOn401(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		okEnvelope(w, dtos.RefreshResponse{Token: "access-2", RefreshToken: "refresh-2"})
	})
	mux.HandleFunc("/guarded", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(dtos.Response{Code: 401, Message: "expired"})
			return
		}
		okEnvelope(w, map[string]string{"value": "secret"})
	})
	client, session := newTestClient(t, mux)

	data, err := client.Get(context.Background(), "/guarded", nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "secret")
	assert.Equal(t, int32(1), refreshes.Load())

	access, refresh := session.Tokens()
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		// Keep the refresh in flight long enough for every caller to join it
		time.Sleep(50 * time.Millisecond)
		okEnvelope(w, dtos.RefreshResponse{Token: "access-2", RefreshToken: "refresh-2"})
	})
	mux.HandleFunc("/guarded/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		okEnvelope(w, nil)
	})
	client, session := newTestClient(t, mux)

	// Distinct paths so request dedup cannot mask extra refreshes
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := client.Get(context.Background(), fmt.Sprintf("/guarded/%d", i), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshes.Load())
	access, refresh := session.Tokens()
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestRefreshFailureExpiresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/guarded", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, session := newTestClient(t, mux)

	expired := false
	client.OnAuthExpired(func() { expired = true })

	_, err := client.Get(context.Background(), "/guarded", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthExpired))
	assert.True(t, expired)
	assert.False(t, session.Active())
}

func TestLogoutInvalidatesCache(t *testing.T) {
	var hits atomic.Int32
	client, session := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		okEnvelope(w, nil)
	}))

	_, err := client.Get(context.Background(), "/thing", nil)
	require.NoError(t, err)
	require.NoError(t, client.Logout())
	assert.False(t, session.Active())

	_, err = client.Get(context.Background(), "/thing", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBearerHeaderAttached(t *testing.T) {
	var header string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		okEnvelope(w, nil)
	}))

	_, err := client.Get(context.Background(), "/thing", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", header)
}
