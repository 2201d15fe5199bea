package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pushercoin/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := session.SimpleConfig{
		APIBaseURL:  server.URL + "/wp-json/pc/v1",
		AuthBaseURL: server.URL + "/wp-json/jwt-auth/v1",
	}

	return New(cfg, opts...)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestLoginSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/jwt-auth/v1/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "tester", payload["username"])
		assert.Equal(t, "secret", payload["password"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"token":             "token-1",
			"user_id":           42,
			"user_nicename":     "tester",
			"user_email":        "tester@example.com",
			"user_display_name": "Tester",
			"token_expires":     1790000000,
		})
	}))

	result, err := client.Login(context.Background(), "tester", "secret")
	require.NoError(t, err)

	assert.Equal(t, "token-1", result.Credential)
	require.NotNil(t, result.Subject)
	assert.Equal(t, "42", result.Subject.ID)
	assert.Equal(t, "tester", result.Subject.Username)
	assert.Equal(t, "tester@example.com", result.Subject.Email)
	assert.Equal(t, "Tester", result.Subject.DisplayName)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, time.Unix(1790000000, 0), *result.ExpiresAt)
}

func TestLoginTrimsIdentifier(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "tester", payload["username"])

		writeJSON(t, w, http.StatusOK, map[string]any{"token": "token-1", "user_id": 1})
	}))

	_, err := client.Login(context.Background(), "  tester  ", "secret")
	require.NoError(t, err)
}

func TestLoginRejectsEmptyInputs(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := client.Login(context.Background(), "", "secret")
	require.Error(t, err)
	assert.True(t, session.IsValidationError(err))

	_, err = client.Login(context.Background(), "tester", "")
	require.Error(t, err)
	assert.True(t, session.IsValidationError(err))

	assert.Zero(t, atomic.LoadInt32(&calls), "no network call for invalid input")
}

func TestLoginInvalidCredentials(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]any{
			"code":    "[jwt_auth] invalid_username",
			"message": "Unknown username.",
		})
	}))

	_, err := client.Login(context.Background(), "tester", "wrong")
	require.Error(t, err)
	assert.True(t, session.IsInvalidCredentials(err))
	assert.Equal(t, "Invalid username or password", session.ErrorMessage(err))
}

func TestLoginRateLimited(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.True(t, session.IsRateLimited(err))
	assert.Equal(t, "Too many login attempts. Please try again later", session.ErrorMessage(err))

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, 30, rich.Metadata["retry_after_seconds"])
}

func TestLoginServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.Equal(t, session.TextCodeServerError, session.ErrorKind(err))
	assert.Equal(t, "Server error. Please try again later", session.ErrorMessage(err))
}

func TestLoginMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.True(t, session.IsMalformedResponse(err))
}

func TestLoginMissingToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"user_id": 42})
	}))

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.True(t, session.IsMalformedResponse(err))
}

func TestLoginTimeout(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}), WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.True(t, session.IsNetworkTimeout(err))
}

func TestLoginConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(session.SimpleConfig{APIBaseURL: url, AuthBaseURL: url})

	_, err := client.Login(context.Background(), "tester", "secret")
	require.Error(t, err)
	assert.True(t, session.IsOffline(err))
}

func TestValidate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/jwt-auth/v1/token/validate", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"id":       "42",
				"username": "tester",
				"email":    "tester@example.com",
			},
		})
	}))

	subject, err := client.Validate(context.Background(), "token-1")
	require.NoError(t, err)
	require.NotNil(t, subject)
	assert.Equal(t, "42", subject.ID)
	assert.Equal(t, "tester", subject.Username)
}

func TestValidateWithoutSubjectPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"data": nil})
	}))

	subject, err := client.Validate(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Nil(t, subject)
}

func TestValidateRejectedCredential(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	invalidations := 0
	client.OnInvalidate(func() { invalidations++ })

	_, err := client.Validate(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, session.IsInvalidCredentials(err))

	// auth endpoints never raise the invalidation signal
	assert.Zero(t, invalidations)
}

func TestRefresh(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/jwt-auth/v1/token/refresh", r.URL.Path)
		assert.Equal(t, "Bearer token-old", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"token":         "token-new",
			"token_expires": 1790000000,
		})
	}))

	result, err := client.Refresh(context.Background(), "token-old")
	require.NoError(t, err)
	assert.Equal(t, "token-new", result.Credential)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, time.Unix(1790000000, 0), *result.ExpiresAt)
}

func TestRefreshMissingToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	}))

	_, err := client.Refresh(context.Background(), "token-old")
	require.Error(t, err)
	assert.True(t, session.IsMalformedResponse(err))
}

func TestAPIRejectionRaisesInvalidation(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &session.Snapshot{
		Credential: "stale-token",
		Subject:    &session.Identity{ID: "42"},
	}))

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stale-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}),
		WithCredentialSource(func() string { return "stale-token" }),
		WithSnapshotStore(store),
	)

	invalidations := 0
	unsubscribe := client.OnInvalidate(func() { invalidations++ })

	err := client.Post(context.Background(), "/rooms/", map[string]string{"name": "lobby"}, nil)
	require.Error(t, err)
	assert.True(t, session.IsInvalidCredentials(err))

	// one failing request, one signal, store cleared
	assert.Equal(t, 1, invalidations)
	snapshot, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Nil(t, snapshot)

	// removed observers stay silent
	unsubscribe()
	err = client.Post(context.Background(), "/rooms/", map[string]string{"name": "lobby"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, invalidations)
}

func TestAPIRejectionWithoutCredentialStaysQuiet(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	invalidations := 0
	client.OnInvalidate(func() { invalidations++ })

	err := client.Post(context.Background(), "/rooms/", nil, nil)
	require.Error(t, err)
	assert.Zero(t, invalidations)
}

func TestGetDecodesPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/wp-json/pc/v1/rooms/", r.URL.Path)
		writeJSON(t, w, http.StatusOK, []map[string]any{{"name": "lobby"}})
	}))

	var rooms []struct {
		Name string `json:"name"`
	}
	require.NoError(t, client.Get(context.Background(), "/rooms/", &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "lobby", rooms[0].Name)
}

func TestClassifyStatusFallback(t *testing.T) {
	err := classifyStatus(http.StatusTeapot, "odd response", "")
	assert.Equal(t, session.TextCodeUnknownFailure, err.TextCode)
	assert.Equal(t, "odd response", err.Message)
	assert.Equal(t, http.StatusTeapot, err.Metadata["status"])
}
