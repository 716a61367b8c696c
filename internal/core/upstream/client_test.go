package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notelens/notelens/internal/core/engine"
	apperrors "github.com/notelens/notelens/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Client{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Timeout:    5 * time.Second,
	}
}

func TestFetchNotesSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "secret-key", r.Header.Get("Authorization"))
		require.Equal(t, DefaultAPIVersion, r.Header.Get("API-Version"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"items": [{"id": "12345", "updates": [
				{"id": "1", "body": "<p>Hi <b>@Sam</b></p>", "created_at": "2025-06-15T11:55:00Z",
				 "creator": {"name": "Sam Rivera", "photo_thumb": "https://cdn.example/sam.png"}},
				{"id": "2", "text_body": "plain fallback", "created_at": "2025-06-15T09:00:00Z"}
			]}]}
		}`))
	})
	client.Clock = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	notes, err := client.FetchNotes(context.Background(), "12345", "secret-key")
	require.NoError(t, err)
	require.Len(t, notes, 2)

	require.Equal(t, "Hi @Sam", notes[0].Body)
	require.Equal(t, "Sam Rivera", notes[0].Author)
	require.Equal(t, "https://cdn.example/sam.png", notes[0].AuthorPhotoURL)
	require.Equal(t, "5 minutes ago", notes[0].Age)

	require.Equal(t, "plain fallback", notes[1].Body)
	require.Equal(t, "3 hours ago", notes[1].Age)
}

func TestFetchNotesRequiresNumericTaskID(t *testing.T) {
	client := &Client{}
	_, err := client.FetchNotes(context.Background(), "abc", "secret-key")
	require.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))
}

func TestFetchNotesMissingKey(t *testing.T) {
	client := &Client{}
	_, err := client.FetchNotes(context.Background(), "12345", "")
	require.Equal(t, apperrors.CodeCredentialMissing, apperrors.CodeOf(err))
}

func TestFetchNotesAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code": "Unauthorized", "error_message": "Not authenticated"}`))
	})

	_, err := client.FetchNotes(context.Background(), "12345", "bad-key")
	require.Equal(t, apperrors.CodeInvalidCredential, apperrors.CodeOf(err))
}

func TestFetchNotesNotFoundFromErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "Item with id 999 not found"}]}`))
	})

	_, err := client.FetchNotes(context.Background(), "999", "secret-key")
	require.Equal(t, apperrors.CodeResourceNotFound, apperrors.CodeOf(err),
		"upstream not-found error must not classify as UNKNOWN_ERROR")
}

func TestFetchNotesEmptyItemSet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"items": []}}`))
	})

	_, err := client.FetchNotes(context.Background(), "999", "secret-key")
	require.Equal(t, apperrors.CodeResourceNotFound, apperrors.CodeOf(err))
}

func TestFetchNotesRateLimitArmsBackoff(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error_code": "ComplexityException", "error_message": "rate limit exceeded"}`))
	})
	client.Limiter = &engine.RateLimiter{}

	_, err := client.FetchNotes(context.Background(), "12345", "secret-key")
	require.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))
	require.True(t, client.Limiter.Backoff().Active, "429 must arm backoff")
}

func TestFetchNotesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchNotes(context.Background(), "12345", "secret-key")
	require.Equal(t, apperrors.CodeUpstreamUnavailable, apperrors.CodeOf(err))
}

func TestFetchNotesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := &Client{BaseURL: server.URL, Timeout: time.Second}

	_, err := client.FetchNotes(context.Background(), "12345", "secret-key")
	require.Equal(t, apperrors.CodeNetworkError, apperrors.CodeOf(err))
}

func TestFetchNotesLimiterBlocksBeforeCall(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	client.Limiter = &engine.RateLimiter{MaxRequests: 1}
	require.NoError(t, client.Limiter.TryAcquire())

	_, err := client.FetchNotes(context.Background(), "12345", "secret-key")
	require.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))
	require.False(t, called, "rejected call must not reach the upstream")
}

func TestValidateKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"me": {"name": "Sam Rivera", "email": "sam@example.com"}}}`))
	})

	account, err := client.ValidateKey(context.Background(), "secret-key")
	require.NoError(t, err)
	require.Equal(t, "Sam Rivera", account.Name)
	require.Equal(t, "sam@example.com", account.Email)
}

func TestValidateKeyRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"me": null}}`))
	})

	_, err := client.ValidateKey(context.Background(), "bad-key")
	require.Equal(t, apperrors.CodeInvalidCredential, apperrors.CodeOf(err))
}

func TestFetchContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": {"items": [{"id": "12345", "name": "Ship the release",
				"group": {"title": "This week"}, "board": {"name": "Engineering"},
				"column_values": [{"id": "status", "text": "Working on it"}, {"id": "empty", "text": ""}]}]}
		}`))
	})

	content, err := client.FetchContent(context.Background(), "12345", "secret-key")
	require.NoError(t, err)
	require.Equal(t, "Ship the release", content.Name)
	require.Equal(t, "This week", content.Group)
	require.Equal(t, "Engineering", content.Board)
	require.Equal(t, map[string]string{"status": "Working on it"}, content.Columns)
}
