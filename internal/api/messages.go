package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppinheiro86/doctalk/internal/chat"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

const maxMessageBodySize = 256 << 10

type createMessageRequest struct {
	Content string `json:"content"`
}

func handleCreateMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxMessageBodySize)
		defer r.Body.Close()

		var req createMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		documentID := chi.URLParam(r, "id")
		msg, err := deps.Chat.Ask(r.Context(), requestUserID(r.Context()), documentID, req.Content)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		case errors.Is(err, chat.ErrDocumentNotReady):
			// 425: the document exists but its text is not extracted yet.
			httpError(w, http.StatusTooEarly, "document_not_ready", "document is still being processed")
			return
		case errors.Is(err, chat.ErrUpstreamUnavailable):
			httpError(w, http.StatusServiceUnavailable, "api_error", "language model unavailable")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create message: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, toMessageResponse(msg))
	}
}

type messageListResponse struct {
	Messages   []messageResponse `json:"data"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func handleListMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "id")
		limit := parseIntParam(r, "limit", 0, 0)
		cursor := r.URL.Query().Get("cursor")

		page, err := deps.Chat.History(r.Context(), requestUserID(r.Context()), documentID, limit, cursor)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		case errors.Is(err, storage.ErrInvalidCursor):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid cursor")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}

		out := messageListResponse{
			Messages:   make([]messageResponse, len(page.Messages)),
			NextCursor: page.NextCursor,
		}
		for i, m := range page.Messages {
			out.Messages[i] = toMessageResponse(m)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
