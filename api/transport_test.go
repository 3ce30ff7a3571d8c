package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-crm-client/api"
	"github.com/jrsteele09/go-crm-client/credentials"
	"github.com/jrsteele09/go-crm-client/credentials/repofake"
	"github.com/jrsteele09/go-crm-client/leads"
	"github.com/jrsteele09/go-crm-client/refresh"
)

// pipelineFixture is a client + coordinator wired against a test server,
// mirroring how session.New assembles them.
type pipelineFixture struct {
	store  *repofake.FakeCredentialRepo
	client *api.Client
}

func newPipelineFixture(t *testing.T, serverURL string, hooks ...refresh.Option) *pipelineFixture {
	t.Helper()

	store := repofake.NewFakeCredentialRepo()
	require.NoError(t, store.Save(credentials.Credential{AccessToken: "AT1", RefreshToken: "RT1"}))

	client, err := api.New(serverURL, store)
	require.NoError(t, err)

	coordinator, err := refresh.NewCoordinator(store, client.RefreshToken, hooks...)
	require.NoError(t, err)
	client.SetRefresher(coordinator)

	return &pipelineFixture{store: store, client: client}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestExpiredTokenIsRefreshedAndRequestRetried(t *testing.T) {
	var meCalls, refreshCalls atomic.Int64
	var retryAuthHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me/", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer AT1":
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
		case "Bearer AT2":
			retryAuthHeader = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, map[string]any{"id": 1, "email": "a@b.com"})
		default:
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
	})
	mux.HandleFunc("POST /auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "RT1", body["refresh"])
		writeJSON(w, http.StatusOK, map[string]string{"access": "AT2", "refresh": "RT2"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newPipelineFixture(t, server.URL)

	profile, err := f.client.Me(context.Background())
	require.NoError(t, err, "the caller never sees the intermediate 401")
	require.Equal(t, int64(1), profile.ID)
	require.Equal(t, "a@b.com", profile.Email)

	require.Equal(t, int64(2), meCalls.Load(), "original request resubmitted once")
	require.Equal(t, int64(1), refreshCalls.Load())
	require.Equal(t, "Bearer AT2", retryAuthHeader)

	stored, err := f.store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "AT2", stored.AccessToken)
	require.Equal(t, "RT2", stored.RefreshToken)
}

func TestRetriedRequestIsNeverRetriedAgain(t *testing.T) {
	var meCalls, refreshCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me/", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	})
	mux.HandleFunc("POST /auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access": "AT2", "refresh": "RT2"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newPipelineFixture(t, server.URL)

	_, err := f.client.Me(context.Background())
	require.ErrorIs(t, err, api.ErrAuthorization)
	require.Equal(t, int64(2), meCalls.Load(), "one retry, then the 401 surfaces")
	require.Equal(t, int64(1), refreshCalls.Load(), "the retried request must not trigger another refresh")
}

func TestRefreshRejectionClearsStore(t *testing.T) {
	var failures atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	})
	mux.HandleFunc("POST /auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "refresh token invalid"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newPipelineFixture(t, server.URL, refresh.WithFailureHook(func(error) { failures.Add(1) }))

	_, err := f.client.Me(context.Background())
	var refreshErr *api.RefreshError
	require.ErrorAs(t, err, &refreshErr)

	stored, err := f.store.Load()
	require.NoError(t, err)
	require.Nil(t, stored, "both tokens removed after the refresh endpoint rejects")
	require.Equal(t, int64(1), failures.Load())
}

func TestWithoutRefresherTheFailureSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
	}))
	defer server.Close()

	store := repofake.NewFakeCredentialRepo()
	require.NoError(t, store.Save(credentials.Credential{AccessToken: "AT1"}))
	client, err := api.New(server.URL, store)
	require.NoError(t, err)

	_, err = client.Me(context.Background())
	require.ErrorIs(t, err, api.ErrAuthorization)
}

func TestBearerAndRequestIDHeaders(t *testing.T) {
	var authHeader, requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "email": "a@b.com"})
	}))
	defer server.Close()

	f := newPipelineFixture(t, server.URL)
	_, err := f.client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer AT1", authHeader)
	require.NotEmpty(t, requestID)
}

func TestAnonymousRequestCarriesNoBearer(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "email": "a@b.com"})
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	_, err = client.Me(context.Background())
	require.NoError(t, err)
	require.False(t, sawAuth)
}

func TestRequestBodyIsReplayedOnRetry(t *testing.T) {
	var createCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /leads/", func(w http.ResponseWriter, r *http.Request) {
		var lead leads.NewLead
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lead))
		require.Equal(t, "Jane", lead.FirstName, "body must survive the resubmission")

		if createCalls.Add(1) == 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, http.StatusCreated, leads.Lead{ID: 7, FirstName: lead.FirstName, LastName: lead.LastName, Email: lead.Email, Status: leads.StatusNew, IsActive: true})
	})
	mux.HandleFunc("POST /auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": "AT2", "refresh": "RT2"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newPipelineFixture(t, server.URL)

	created, err := f.client.CreateLead(context.Background(), leads.NewLead{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), created.ID)
	require.Equal(t, int64(2), createCalls.Load())
}
