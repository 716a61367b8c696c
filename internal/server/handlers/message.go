// Package handlers contains the HTTP handlers served by notelens.
package handlers

import (
	"encoding/json"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/router"
	apperrors "github.com/notelens/notelens/internal/errors"
)

const maxMessageBytes = 64 << 10

// Messages serves the message envelope over HTTP.
type Messages struct {
	Dispatch *router.Router
}

// Message handles POST /api/v1/message. Transport-level problems map to
// HTTP errors; action-level failures come back inside the envelope with a
// 200, mirroring how extension message passing reports them.
func (h *Messages) Message(w http.ResponseWriter, r *http.Request) {
	var req router.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := decoder.Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("malformed message envelope"))
		return
	}
	if req.Action == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("action is required"))
		return
	}

	resp := h.Dispatch.Dispatch(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// TaskNotes handles GET /api/v1/tasks/{taskID}/notes, a REST view over the
// fetchNotes action. Failures map to HTTP status codes here.
func (h *Messages) TaskNotes(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	resp := h.Dispatch.Dispatch(r.Context(), router.Request{
		Action: core.ActionFetchNotes,
		TaskID: taskID,
	})
	if !resp.Success {
		apperrors.RespondWithEnvelope(w, r, gferrors.NewErrorEnvelope(resp.ErrorCode, resp.Error))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
