package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T, calls *atomic.Int64, token string, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client_credentials", req.GrantType)
		assert.Equal(t, "client-1", req.ClientID)
		assert.Equal(t, "secret-1", req.ClientSecret)

		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: token, ExpiresIn: expiresIn})
	}))
}

func TestTokenSourceCachesWhileValid(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, "tok-1", 3600)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "client-1", "secret-1", srv.Client())

	for i := 0; i < 5; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestTokenSourceRefreshesAfterExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newAuthServer(t, &calls, "tok-1", 60)
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "client-1", "secret-1", srv.Client())

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	// Still inside the 60s window.
	now = now.Add(30 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	// Past the expiry.
	now = now.Add(31 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTokenSourceBoundsConcurrentRefreshes(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "client-1", "secret-1", srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := ts.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestTokenSourceFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_client", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "client-1", "secret-1", srv.Client())

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestTokenSourceRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "", ExpiresIn: 3600})
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "client-1", "secret-1", srv.Client())

	_, err := ts.Token(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}
