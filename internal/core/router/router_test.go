//go:build cgo

package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notelens/notelens/internal/config"
	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/cache"
	"github.com/notelens/notelens/internal/core/store"
	"github.com/notelens/notelens/internal/core/upstream"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/license"
)

const notesBody = `{"data":{"items":[{"id":"123","updates":[
	{"id":"u1","body":"<p>Shipping <b>today</b></p>","created_at":"2026-03-01T11:55:00Z","creator":{"name":"Sam","photo_thumb":"https://cdn.example/sam.png"}}
]}]}}`

const contentBody = `{"data":{"items":[{"id":"123","name":"Launch checklist","group":{"title":"This Week"},"board":{"name":"Releases"},"column_values":[{"id":"status","text":"Working on it"}]}]}}`

const meBody = `{"data":{"me":{"name":"Sam","email":"sam@example.com"}}}`

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestRouter(t *testing.T, handler http.HandlerFunc, freeDailyFetches int) (*Router, *store.Store) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := store.Open(context.Background(), config.StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	gate := license.NewGate(s, freeDailyFetches)
	gate.Clock = fixedClock

	r := &Router{
		Cache: cache.NewMemory(10),
		Upstream: &upstream.Client{
			BaseURL: server.URL,
			Clock:   fixedClock,
		},
		Store: s,
		Gate:  gate,
		Sleep: func(time.Duration) {},
		Clock: fixedClock,
	}
	return r, s
}

func TestDispatchFetchNotesMissThenHit(t *testing.T) {
	upstreamCalls := 0
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		upstreamCalls++
		_, _ = w.Write([]byte(notesBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success, "error: %s", resp.Error)
	require.False(t, resp.Cached)
	require.Equal(t, 1, upstreamCalls)

	var payload struct {
		Notes      []core.Note     `json:"notes"`
		Provenance core.Provenance `json:"provenance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.Len(t, payload.Notes, 1)
	require.Equal(t, "Shipping today", payload.Notes[0].Body)
	require.Equal(t, "Sam", payload.Notes[0].Author)
	require.Equal(t, "5 minutes ago", payload.Notes[0].Age)
	require.False(t, payload.Provenance.FromCache)
	require.NotEmpty(t, payload.Provenance.FetchID)
	require.NotNil(t, payload.Provenance.CacheExpiresAt)

	resp = r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success)
	require.True(t, resp.Cached)
	require.Equal(t, 1, upstreamCalls, "cache hit must not reach upstream")

	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.True(t, payload.Provenance.FromCache)

	// Only the live fetch is charged against the daily allowance.
	count, err := s.UsageCount(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDispatchConcurrentFetchesShareOneUpstreamCall(t *testing.T) {
	var upstreamCalls atomic.Int32
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)

	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		upstreamCalls.Add(1)
		select {
		case arrived <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(notesBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	const callers = 4
	responses := make([]Response, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
		}(i)
	}

	// Hold the upstream open until every caller has had time to join the
	// in-flight fetch.
	<-arrived
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), upstreamCalls.Load(), "concurrent fetches must collapse into one upstream call")
	for i, resp := range responses {
		require.True(t, resp.Success, "caller %d: %s", i, resp.Error)
		require.False(t, resp.Cached)
	}

	// The shared fetch is charged once.
	count, err := s.UsageCount(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDispatchFetchContent(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(contentBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchContent, TaskID: "123"})
	require.True(t, resp.Success, "error: %s", resp.Error)

	var payload struct {
		Content *core.TaskContent `json:"content"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.Equal(t, "Launch checklist", payload.Content.Name)
	require.Equal(t, "Releases", payload.Content.Board)
	require.Equal(t, "This Week", payload.Content.Group)
	require.Equal(t, "Working on it", payload.Content.Columns["status"])
}

func TestDispatchFetchNotesInvalidTaskID(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	}, 20)

	resp := r.Dispatch(context.Background(), Request{Action: core.ActionFetchNotes, TaskID: "abc"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeInvalidInput, resp.ErrorCode)
}

func TestDispatchFetchNotesMissingCredential(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("upstream must not be called")
	}, 20)

	resp := r.Dispatch(context.Background(), Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeCredentialMissing, resp.ErrorCode)
}

func TestDispatchFreeTierExhausted(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(notesBody))
	}, 1)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success)

	// Second distinct task misses the cache and trips the allowance.
	resp = r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "456"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodePermissionDenied, resp.ErrorCode)

	// The cached task keeps working.
	resp = r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success)
	require.True(t, resp.Cached)
}

func TestDispatchRetriesRetryableFailures(t *testing.T) {
	upstreamCalls := 0
	var slept []time.Duration

	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		upstreamCalls++
		if upstreamCalls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(notesBody))
	}, 20)
	r.Sleep = func(d time.Duration) { slept = append(slept, d) }
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success, "error: %s", resp.Error)
	require.Equal(t, 3, upstreamCalls)
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, slept)
}

func TestDispatchDoesNotRetryTerminalFailures(t *testing.T) {
	upstreamCalls := 0
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		upstreamCalls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Not authenticated"}]}`))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-bad"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeInvalidCredential, resp.ErrorCode)
	require.Equal(t, 1, upstreamCalls)
}

func TestDispatchSaveKeyClearsCache(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(notesBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-old"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})
	require.True(t, resp.Success)

	resp = r.Dispatch(ctx, Request{Action: core.ActionSaveAPIKey, APIKey: "token-new"})
	require.True(t, resp.Success)

	key, valid, err := s.APIKey(ctx)
	require.NoError(t, err)
	require.Equal(t, "token-new", key)
	require.False(t, valid)

	length, err := r.Cache.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, length)
}

func TestDispatchSaveKeyRequiresValue(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {}, 20)

	resp := r.Dispatch(context.Background(), Request{Action: core.ActionSaveAPIKey})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeInvalidInput, resp.ErrorCode)
}

func TestDispatchGetKey(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))
	require.NoError(t, s.SetAPIKeyValid(ctx, true))

	resp := r.Dispatch(ctx, Request{Action: core.ActionGetAPIKey})
	require.True(t, resp.Success)

	var payload struct {
		APIKey string `json:"apiKey"`
		Valid  bool   `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.Equal(t, "token-123", payload.APIKey)
	require.True(t, payload.Valid)
}

func TestDispatchValidateKey(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") == "token-good" {
			_, _ = w.Write([]byte(meBody))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Not authenticated"}]}`))
	}, 20)
	ctx := context.Background()

	resp := r.Dispatch(ctx, Request{Action: core.ActionValidateAPIKey, APIKey: "token-good"})
	require.True(t, resp.Success)
	require.NotNil(t, resp.Valid)
	require.True(t, *resp.Valid)

	var account core.Account
	require.NoError(t, json.Unmarshal(resp.Data, &account))
	require.Equal(t, "sam@example.com", account.Email)

	resp = r.Dispatch(ctx, Request{Action: core.ActionValidateAPIKey, APIKey: "token-bad"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeInvalidCredential, resp.ErrorCode)
	require.NotNil(t, resp.Valid)
	require.False(t, *resp.Valid)

	_, valid, err := s.APIKey(ctx)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestDispatchTestConnectionUsesStoredKey(t *testing.T) {
	var gotAuth string
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		_, _ = w.Write([]byte(meBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-stored"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionTestAPIConnection})
	require.True(t, resp.Success)
	require.Equal(t, "token-stored", gotAuth)
}

func TestDispatchCacheCheck(t *testing.T) {
	r, s := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(notesBody))
	}, 20)
	ctx := context.Background()

	require.NoError(t, s.SetAPIKey(ctx, "token-123"))

	resp := r.Dispatch(ctx, Request{Action: core.ActionCacheCheck, TaskID: "123"})
	require.True(t, resp.Success)
	require.False(t, resp.Cached)

	_ = r.Dispatch(ctx, Request{Action: core.ActionFetchNotes, TaskID: "123"})

	resp = r.Dispatch(ctx, Request{Action: core.ActionCacheCheck, TaskID: "123"})
	require.True(t, resp.Success)
	require.True(t, resp.Cached)

	var payload struct {
		Cached    bool       `json:"cached"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.True(t, payload.Cached)
	require.NotNil(t, payload.ExpiresAt)
}

func TestDispatchUnknownAction(t *testing.T) {
	r, _ := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {}, 20)

	resp := r.Dispatch(context.Background(), Request{Action: "selfDestruct"})
	require.False(t, resp.Success)
	require.Equal(t, apperrors.CodeInvalidInput, resp.ErrorCode)
}
