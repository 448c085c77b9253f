package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticToken is a TokenSource returning fixed tokens and counting forced
// refreshes.
type staticToken struct {
	token        string
	refreshed    string
	refreshCalls atomic.Int32
	refreshErr   error
}

func (s *staticToken) Token(_ context.Context) (string, error) {
	return s.token, nil
}

func (s *staticToken) ForceRefresh(_ context.Context) (string, error) {
	s.refreshCalls.Add(1)

	if s.refreshErr != nil {
		return "", s.refreshErr
	}

	return s.refreshed, nil
}

// failingToken is a TokenSource that always errors.
type failingToken struct{}

func (failingToken) Token(_ context.Context) (string, error) {
	return "", errors.New("token error")
}

func (failingToken) ForceRefresh(_ context.Context) (string, error) {
	return "", errors.New("refresh error")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, &staticToken{token: "tok-1"}, testLogger())

	resp, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestDo_RefreshRetryOnUnauthorized(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := &staticToken{token: "tok-1", refreshed: "tok-2"}
	client := NewClient(srv.URL, http.DefaultClient, src, testLogger())

	resp, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), src.refreshCalls.Load())
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_SecondRejectionIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := &staticToken{token: "tok-1", refreshed: "tok-2"}
	client := NewClient(srv.URL, http.DefaultClient, src, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Exactly one forced refresh — no retry loop against a dead session.
	assert.Equal(t, int32(1), src.refreshCalls.Load())
}

func TestDo_RefreshFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := &staticToken{token: "tok-1", refreshErr: ErrUnauthorized}
	client := NewClient(srv.URL, http.DefaultClient, src, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDo_TokenSourceErrorFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, failingToken{}, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.Error(t, err)
}

func TestDo_NetworkErrorClassified(t *testing.T) {
	// Point at a closed server so the dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, &staticToken{token: "tok"}, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestDo_ServerErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, &staticToken{token: "tok"}, testLogger())

	_, err := client.Do(context.Background(), http.MethodGet, "/bins", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestDoJSON_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":true,"bins":[{"_id":"B1","binId":"BIN-001"}],"count":1}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, &staticToken{token: "tok"}, testLogger())

	bins, err := client.ListBins(context.Background())
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Equal(t, "BIN-001", bins[0].BinID)
}

func TestActiveRoute_NotFoundIsNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, http.DefaultClient, &staticToken{token: "tok"}, testLogger())

	route, err := client.ActiveRoute(context.Background(), "DRIVER_001")
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.code), "status %d", tt.code)
	}
}
