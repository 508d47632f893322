package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/linkgrab/internal/control"
	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/platform"
)

// ControlHandler lets API clients bind sent messages to a control and act on
// its delete button.
type ControlHandler struct {
	registry *control.Registry
	logger   *slog.Logger
}

// NewControlHandler creates a new control handler.
func NewControlHandler(registry *control.Registry, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{registry: registry, logger: logger}
}

// ControlResponse describes a live control.
type ControlResponse struct {
	Control  domain.ControlDescriptor `json:"control"`
	Messages []platform.Message       `json:"messages"`
}

// DeleteRequest is the body of POST /api/v1/controls/{controlID}/delete.
type DeleteRequest struct {
	RequesterID string `json:"requester_id"`
}

// DeleteResponse lists the messages the client must now delete.
type DeleteResponse struct {
	Messages []platform.Message `json:"messages"`
}

// Register records a control descriptor. It matches the signature
// NewEmbedHandler expects. The server cannot edit client messages, so expiry
// is not pushed: clients either drop the delete button after desc.Timeout or
// poll Get, which reports expired controls for an hour.
func (h *ControlHandler) Register(desc domain.ControlDescriptor) error {
	return h.registry.Register(desc, nil)
}

// Get handles GET /api/v1/controls/{controlID}.
func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	desc, msgs, err := h.registry.Get(controlID(r))
	if err != nil && !(errors.Is(err, domain.ErrControlExpired) && desc.ID != "") {
		h.writeControlError(w, err)
		return
	}
	if msgs == nil {
		msgs = []platform.Message{}
	}
	writeJSON(w, http.StatusOK, ControlResponse{Control: desc, Messages: msgs})
}

// Bind handles POST /api/v1/controls/{controlID}/messages.
func (h *ControlHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var msg platform.Message
	if err := decodeBody(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	if err := h.registry.Bind(controlID(r), msg); err != nil {
		h.writeControlError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles POST /api/v1/controls/{controlID}/delete.
func (h *ControlHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := controlID(r)
	msgs, err := h.registry.Delete(id, req.RequesterID)
	if err != nil {
		h.writeControlError(w, err)
		return
	}
	if msgs == nil {
		msgs = []platform.Message{}
	}
	h.logger.Info("control deleted", "control_id", id, "messages", len(msgs))
	writeJSON(w, http.StatusOK, DeleteResponse{Messages: msgs})
}

func (h *ControlHandler) writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotRequester):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrControlNotFound), errors.Is(err, domain.ErrControlExpired):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("control operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "control operation failed")
	}
}

func controlID(r *http.Request) domain.ControlID {
	return domain.ControlID(chi.URLParam(r, "controlID"))
}
