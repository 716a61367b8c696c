// Package router dispatches message-envelope requests to the cache, the
// upstream dispatcher, the settings store, and the license gate.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/cache"
	"github.com/notelens/notelens/internal/core/store"
	"github.com/notelens/notelens/internal/core/upstream"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/license"
)

// Retry defaults for the retryable failure classes.
const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 8 * time.Second

	// DefaultNotesTTL and DefaultContentTTL bound cache staleness.
	DefaultNotesTTL   = 5 * time.Minute
	DefaultContentTTL = 10 * time.Minute
)

// Request is the message envelope accepted by Dispatch.
type Request struct {
	Action     core.Action `json:"action"`
	TaskID     string      `json:"taskId,omitempty"`
	APIKey     string      `json:"apiKey,omitempty"`
	LicenseKey string      `json:"licenseKey,omitempty"`
}

// Response is the message envelope returned by Dispatch. Data carries the
// action-specific payload; Error and ErrorCode are set on failure.
type Response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Cached    bool            `json:"cached"`
	Valid     *bool           `json:"valid,omitempty"`
}

// Router owns the dispatch pipeline: parameter validation, cache lookup,
// free-tier gating, deduplicated upstream fetch, bounded retry, persistence.
type Router struct {
	Cache    cache.Cache
	Upstream *upstream.Client
	Store    *store.Store
	Gate     *license.Gate

	NotesTTL   time.Duration
	ContentTTL time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Sleep and Clock are swappable for tests.
	Sleep func(time.Duration)
	Clock func() time.Time

	group singleflight.Group
}

// fetchPayload is what gets cached and returned for the fetch actions.
type fetchPayload struct {
	Notes      []core.Note       `json:"notes,omitempty"`
	Content    *core.TaskContent `json:"content,omitempty"`
	Provenance core.Provenance   `json:"provenance"`
}

type keyPayload struct {
	APIKey string `json:"apiKey"`
	Valid  bool   `json:"valid"`
}

type cacheCheckPayload struct {
	Cached    bool       `json:"cached"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Dispatch routes one envelope to its action handler. Failures always come
// back as a Response with ErrorCode set; the error return is reserved for
// encoding problems that leave no usable envelope.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	switch req.Action {
	case core.ActionFetchNotes:
		return r.handleFetch(ctx, req, false)
	case core.ActionFetchContent:
		return r.handleFetch(ctx, req, true)
	case core.ActionValidateAPIKey:
		return r.handleValidateKey(ctx, req)
	case core.ActionSaveAPIKey:
		return r.handleSaveKey(ctx, req)
	case core.ActionGetAPIKey:
		return r.handleGetKey(ctx)
	case core.ActionTestAPIConnection:
		return r.handleTestConnection(ctx)
	case core.ActionCacheCheck:
		return r.handleCacheCheck(ctx, req)
	default:
		return failure(apperrors.NewInvalidInputError(
			fmt.Sprintf("unknown action %q", req.Action)))
	}
}

func (r *Router) handleFetch(ctx context.Context, req Request, content bool) Response {
	if _, err := upstream.ParseTaskID(req.TaskID); err != nil {
		return failure(err)
	}

	cacheKey := "notes:" + req.TaskID
	ttl := r.notesTTL()
	if content {
		cacheKey = "content:" + req.TaskID
		ttl = r.contentTTL()
	}

	if raw, ok, err := r.Cache.Get(ctx, cacheKey); err == nil && ok {
		if resp, ok := r.cachedResponse(raw); ok {
			return resp
		}
	}

	apiKey, err := r.resolveAPIKey(ctx, req.APIKey)
	if err != nil {
		return failure(err)
	}

	if err := r.Gate.AllowFetch(ctx); err != nil {
		return failure(err)
	}

	raw, err, _ := r.group.Do(cacheKey, func() (interface{}, error) {
		payload, err := r.fetchWithRetry(ctx, req.TaskID, apiKey, content)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.WrapUnknown(ctx, err, "encode fetch payload")
		}

		if err := r.Cache.Set(ctx, cacheKey, encoded, ttl); err != nil {
			return nil, apperrors.WrapStorage(ctx, err, "cache fetch payload")
		}

		if _, err := r.Gate.RecordFetch(ctx); err != nil {
			return nil, err
		}

		return encoded, nil
	})
	if err != nil {
		return failure(err)
	}

	encoded, ok := raw.([]byte)
	if !ok {
		return failure(apperrors.NewUnknownError("unexpected fetch result type"))
	}

	return Response{Success: true, Data: encoded, Cached: false}
}

// cachedResponse rewrites the provenance of a cached payload so the caller
// can tell a hit from a live fetch.
func (r *Router) cachedResponse(raw []byte) (Response, bool) {
	var payload fetchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Response{}, false
	}

	now := r.now()
	payload.Provenance.FromCache = true
	payload.Provenance.RequestedAt = now
	payload.Provenance.ResolvedAt = now

	encoded, err := json.Marshal(payload)
	if err != nil {
		return Response{}, false
	}
	return Response{Success: true, Data: encoded, Cached: true}, true
}

func (r *Router) fetchWithRetry(ctx context.Context, taskID, apiKey string, content bool) (*fetchPayload, error) {
	attempts := r.retryAttempts()
	baseDelay := r.retryBaseDelay()
	maxDelay := r.retryMaxDelay()

	requestedAt := r.now()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		payload := &fetchPayload{}
		var err error
		if content {
			payload.Content, err = r.Upstream.FetchContent(ctx, taskID, apiKey)
		} else {
			payload.Notes, err = r.Upstream.FetchNotes(ctx, taskID, apiKey)
		}
		if err == nil {
			resolvedAt := r.now()
			ttl := r.notesTTL()
			if content {
				ttl = r.contentTTL()
			}
			expiresAt := resolvedAt.Add(ttl)
			payload.Provenance = core.Provenance{
				FetchID:        uuid.New().String(),
				RequestedAt:    requestedAt,
				ResolvedAt:     resolvedAt,
				FromCache:      false,
				CacheExpiresAt: &expiresAt,
			}
			return payload, nil
		}

		lastErr = err
		if !apperrors.Retryable(apperrors.CodeOf(err)) || attempt == attempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		if delay > maxDelay {
			delay = maxDelay
		}
		r.sleep(delay)
	}

	return nil, lastErr
}

func (r *Router) handleValidateKey(ctx context.Context, req Request) Response {
	apiKey, err := r.resolveAPIKey(ctx, req.APIKey)
	if err != nil {
		return failure(err)
	}

	account, err := r.Upstream.ValidateKey(ctx, apiKey)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeInvalidCredential {
			if storeErr := r.Store.SetAPIKeyValid(ctx, false); storeErr != nil {
				return failure(apperrors.WrapStorage(ctx, storeErr, "record credential validity"))
			}
			resp := failure(err)
			resp.Valid = boolPtr(false)
			return resp
		}
		return failure(err)
	}

	if err := r.Store.SetAPIKeyValid(ctx, true); err != nil {
		return failure(apperrors.WrapStorage(ctx, err, "record credential validity"))
	}

	data, err := json.Marshal(account)
	if err != nil {
		return failure(apperrors.WrapUnknown(ctx, err, "encode account"))
	}
	return Response{Success: true, Data: data, Valid: boolPtr(true)}
}

func (r *Router) handleSaveKey(ctx context.Context, req Request) Response {
	if req.APIKey == "" {
		return failure(apperrors.NewInvalidInputError("apiKey is required"))
	}

	if err := r.Store.SetAPIKey(ctx, req.APIKey); err != nil {
		return failure(apperrors.WrapStorage(ctx, err, "persist api key"))
	}

	// A credential swap invalidates everything fetched under the old one.
	if err := r.Cache.Clear(ctx); err != nil {
		return failure(apperrors.WrapStorage(ctx, err, "clear cache"))
	}

	return Response{Success: true}
}

func (r *Router) handleGetKey(ctx context.Context) Response {
	key, valid, err := r.Store.APIKey(ctx)
	if err != nil {
		return failure(apperrors.WrapStorage(ctx, err, "read api key"))
	}

	data, err := json.Marshal(keyPayload{APIKey: key, Valid: valid})
	if err != nil {
		return failure(apperrors.WrapUnknown(ctx, err, "encode key payload"))
	}
	return Response{Success: true, Data: data}
}

func (r *Router) handleTestConnection(ctx context.Context) Response {
	apiKey, err := r.resolveAPIKey(ctx, "")
	if err != nil {
		return failure(err)
	}

	account, err := r.Upstream.ValidateKey(ctx, apiKey)
	if err != nil {
		resp := failure(err)
		if apperrors.CodeOf(err) == apperrors.CodeInvalidCredential {
			resp.Valid = boolPtr(false)
		}
		return resp
	}

	data, err := json.Marshal(account)
	if err != nil {
		return failure(apperrors.WrapUnknown(ctx, err, "encode account"))
	}
	return Response{Success: true, Data: data, Valid: boolPtr(true)}
}

func (r *Router) handleCacheCheck(ctx context.Context, req Request) Response {
	if _, err := upstream.ParseTaskID(req.TaskID); err != nil {
		return failure(err)
	}

	raw, ok, err := r.Cache.Get(ctx, "notes:"+req.TaskID)
	if err != nil {
		return failure(apperrors.WrapStorage(ctx, err, "check cache"))
	}

	check := cacheCheckPayload{Cached: ok}
	if ok {
		var payload fetchPayload
		if err := json.Unmarshal(raw, &payload); err == nil {
			check.ExpiresAt = payload.Provenance.CacheExpiresAt
		}
	}

	data, err := json.Marshal(check)
	if err != nil {
		return failure(apperrors.WrapUnknown(ctx, err, "encode cache check"))
	}
	return Response{Success: true, Data: data, Cached: ok}
}

// resolveAPIKey prefers the credential on the request and falls back to the
// stored one.
func (r *Router) resolveAPIKey(ctx context.Context, requestKey string) (string, error) {
	if requestKey != "" {
		return requestKey, nil
	}

	key, _, err := r.Store.APIKey(ctx)
	if err != nil {
		return "", apperrors.WrapStorage(ctx, err, "read api key")
	}
	if key == "" {
		return "", apperrors.NewCredentialMissingError("no api key configured")
	}
	return key, nil
}

func failure(err error) Response {
	code := apperrors.CodeOf(err)
	return Response{
		Success:   false,
		Error:     apperrors.HumanMessage(code),
		ErrorCode: code,
	}
}

func boolPtr(v bool) *bool { return &v }

func (r *Router) notesTTL() time.Duration {
	if r.NotesTTL > 0 {
		return r.NotesTTL
	}
	return DefaultNotesTTL
}

func (r *Router) contentTTL() time.Duration {
	if r.ContentTTL > 0 {
		return r.ContentTTL
	}
	return DefaultContentTTL
}

func (r *Router) retryAttempts() int {
	if r.RetryAttempts > 0 {
		return r.RetryAttempts
	}
	return DefaultRetryAttempts
}

func (r *Router) retryBaseDelay() time.Duration {
	if r.RetryBaseDelay > 0 {
		return r.RetryBaseDelay
	}
	return DefaultRetryBaseDelay
}

func (r *Router) retryMaxDelay() time.Duration {
	if r.RetryMaxDelay > 0 {
		return r.RetryMaxDelay
	}
	return DefaultRetryMaxDelay
}

func (r *Router) sleep(d time.Duration) {
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (r *Router) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
