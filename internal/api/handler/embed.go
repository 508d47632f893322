package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/service"
)

// EmbedHandler turns chat text into ready-to-send payloads.
type EmbedHandler struct {
	embedder service.Embedder
	register func(domain.ControlDescriptor) error
	logger   *slog.Logger
}

// NewEmbedHandler creates an embed handler. register records each response's
// control so clients can bind sent messages to it; it may be nil.
func NewEmbedHandler(embedder service.Embedder, register func(domain.ControlDescriptor) error, logger *slog.Logger) *EmbedHandler {
	return &EmbedHandler{embedder: embedder, register: register, logger: logger}
}

// EmbedRequest is the body of POST /api/v1/embeds.
type EmbedRequest struct {
	Text               string `json:"text"`
	MaxAttachmentBytes int64  `json:"max_attachment_bytes"`
	RequesterID        string `json:"requester_id"`
	Spoiler            bool   `json:"spoiler"`
}

// EmbedResult is one reference's outcome.
type EmbedResult struct {
	Reference *domain.Reference         `json:"reference,omitempty"`
	Post      *domain.Post              `json:"post,omitempty"`
	Payloads  []domain.Payload          `json:"payloads,omitempty"`
	Control   *domain.ControlDescriptor `json:"control,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind domain.ErrorKind          `json:"error_kind,omitempty"`
}

// EmbedResponse is the response of POST /api/v1/embeds.
type EmbedResponse struct {
	Results []EmbedResult `json:"results"`
}

// Create handles POST /api/v1/embeds.
func (h *EmbedHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	results, err := h.embedder.Embed(r.Context(), service.EmbedRequest{
		Text:        req.Text,
		MaxBytes:    req.MaxAttachmentBytes,
		Spoiler:     req.Spoiler,
		RequesterID: req.RequesterID,
	})
	switch {
	case errors.Is(err, domain.ErrNoLinks):
		writeError(w, http.StatusBadRequest, "found no links")
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil && domain.KindOf(err) == domain.ErrorKindUnsupported:
		writeError(w, http.StatusUnprocessableEntity, domain.UserMessage(err))
		return
	case err != nil:
		h.logger.Error("embed failed", "error", err)
		writeError(w, http.StatusInternalServerError, "embed failed")
		return
	}

	resp := EmbedResponse{Results: make([]EmbedResult, 0, len(results))}
	for _, res := range results {
		out := EmbedResult{Post: res.Post}
		if res.Reference.Provider != "" {
			ref := res.Reference
			out.Reference = &ref
		}
		if res.Err != nil {
			out.Error = domain.UserMessage(res.Err)
			out.ErrorKind = domain.KindOf(res.Err)
			resp.Results = append(resp.Results, out)
			continue
		}

		out.Payloads = res.Response.Payloads()
		out.Control = res.Response.Control
		if h.register != nil && out.Control != nil {
			if err := h.register(*out.Control); err != nil {
				h.logger.Warn("failed to register control", "control_id", out.Control.ID, "error", err)
			}
		}
		resp.Results = append(resp.Results, out)
	}

	writeJSON(w, http.StatusOK, resp)
}
