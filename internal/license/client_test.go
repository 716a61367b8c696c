package license

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notelens/notelens/internal/core"
	nlerrors "github.com/notelens/notelens/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "notelens", "prod_123")
	client.Clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return client
}

func TestVerifyActiveLicense(t *testing.T) {
	var gotForm map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"product_permalink":    r.PostFormValue("product_permalink"),
			"product_id":           r.PostFormValue("product_id"),
			"license_key":          r.PostFormValue("license_key"),
			"increment_uses_count": r.PostFormValue("increment_uses_count"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"purchase":{"email":"buyer@example.com"}}`))
	})

	license, err := client.Verify(context.Background(), "GUM-0001")
	require.NoError(t, err)
	require.Equal(t, core.LicenseActive, license.Status)
	require.Equal(t, "GUM-0001", license.Key)
	require.Equal(t, "buyer@example.com", license.Email)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), license.VerifiedAt)

	require.Equal(t, map[string]string{
		"product_permalink":    "notelens",
		"product_id":           "prod_123",
		"license_key":          "GUM-0001",
		"increment_uses_count": "false",
	}, gotForm)
}

func TestVerifyCancelledSubscription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"purchase":{"email":"buyer@example.com","subscription_cancelled_at":"2026-01-10T00:00:00Z"}}`))
	})

	license, err := client.Verify(context.Background(), "GUM-0002")
	require.NoError(t, err)
	require.Equal(t, core.LicenseCancelled, license.Status)
}

func TestVerifyFailedSubscriptionPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"purchase":{"email":"buyer@example.com","subscription_failed_at":"2026-02-01T00:00:00Z"}}`))
	})

	license, err := client.Verify(context.Background(), "GUM-0003")
	require.NoError(t, err)
	require.Equal(t, core.LicenseCancelled, license.Status)
}

func TestVerifyUnknownKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"That license does not exist for the provided product."}`))
	})

	license, err := client.Verify(context.Background(), "GUM-BOGUS")
	require.NoError(t, err)
	require.Equal(t, core.LicenseInvalid, license.Status)
}

func TestVerifyEmptyKeyRejected(t *testing.T) {
	client := NewClient("http://unused.invalid", "notelens", "")

	_, err := client.Verify(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, nlerrors.CodeInvalidInput, nlerrors.CodeOf(err))
}

func TestVerifyServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Verify(context.Background(), "GUM-0004")
	require.Error(t, err)
	require.Equal(t, nlerrors.CodeUpstreamUnavailable, nlerrors.CodeOf(err))
}

func TestVerifyNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewClient(server.URL, "notelens", "")

	_, err := client.Verify(context.Background(), "GUM-0005")
	require.Error(t, err)
	require.Equal(t, nlerrors.CodeNetworkError, nlerrors.CodeOf(err))
}
