package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-crm-client/api"
	"github.com/jrsteele09/go-crm-client/credentials/repofake"
)

func TestLoginParsesAuthResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a@b.com", body["email"])
		require.Equal(t, "secret", body["password"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access":  "AT1",
			"refresh": "RT1",
			"user":    map[string]any{"id": 1, "email": "a@b.com"},
		})
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	resp, err := client.Login(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "AT1", resp.Access)
	require.Equal(t, "RT1", resp.Refresh)
	require.Equal(t, int64(1), resp.User.ID)
	require.Equal(t, "a@b.com", resp.User.Email)
}

func TestRegisterSendsNamePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Jane", body["first_name"])
		require.Equal(t, "Doe", body["last_name"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"access": "AT1",
			"user":   map[string]any{"id": 2, "email": body["email"]},
		})
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	resp, err := client.Register(context.Background(), "jane@example.com", "secret", "Jane", "Doe")
	require.NoError(t, err)
	require.Equal(t, "AT1", resp.Access)
	require.Empty(t, resp.Refresh, "refresh token is optional")
}

func TestValidationDetailPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"detail": "No active account found with the given credentials",
		})
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.com", "wrong")
	var validationErr *api.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, http.StatusBadRequest, validationErr.StatusCode)
	require.Equal(t, "No active account found with the given credentials", validationErr.Error())
}

func TestValidationFieldErrorsAreSummarized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"email": {"Enter a valid email address."},
		})
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	_, err = client.Register(context.Background(), "nope", "secret", "", "")
	var validationErr *api.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "email: Enter a valid email address.", validationErr.Error())
}

func TestValidationFallsBackToGenericMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	_, err = client.Me(context.Background())
	var validationErr *api.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "something went wrong, please try again", validationErr.Error())
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestWithBaseTransportServesRequestsWithoutANetwork(t *testing.T) {
	var seen *http.Request
	rt := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		rec := httptest.NewRecorder()
		writeJSON(rec, http.StatusOK, map[string]any{"id": 1, "email": "a@b.com"})
		return rec.Result(), nil
	})

	client, err := api.New("http://crm.internal", repofake.NewFakeCredentialRepo(), api.WithBaseTransport(rt))
	require.NoError(t, err)

	profile, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a@b.com", profile.Email)
	require.Equal(t, "crm.internal", seen.URL.Host)
	require.Equal(t, "/auth/me/", seen.URL.Path)
}

func TestUnreachableServerIsANetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening

	client, err := api.New(server.URL, repofake.NewFakeCredentialRepo())
	require.NoError(t, err)

	_, err = client.Me(context.Background())
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
}
