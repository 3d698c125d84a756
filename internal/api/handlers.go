// Package api exposes the HTTP surface: account endpoints, document upload
// and retrieval, and the per-document chat.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppinheiro86/doctalk/internal/auth"
	"github.com/ppinheiro86/doctalk/internal/blob"
	"github.com/ppinheiro86/doctalk/internal/chat"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

const maxUploadSize = 5 << 20 // 5MB, same cap as the upload form

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store *storage.Store
	Auth  *auth.Service
	Blobs blob.Provider
	Chat  *chat.Orchestrator
}

// NewHandler builds the full route tree. Everything under /documents requires
// a bearer session; /auth and /health are public.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/auth/register", handleRegister(deps))
	r.Post("/auth/login", handleLogin(deps))

	r.Group(func(r chi.Router) {
		r.Use(auth.Bearer(deps.Auth, httpError))

		r.Post("/documents", handleUpload(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))
		r.Get("/documents/{id}/download", handleDownload(deps))
		r.Post("/documents/{id}/messages", handleCreateMessage(deps))
		r.Get("/documents/{id}/messages", handleListMessages(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// documentResponse is the wire shape of a document.
type documentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toDocumentResponse(d storage.Document) documentResponse {
	return documentResponse{
		ID:        d.ID,
		FileName:  d.FileName,
		MimeType:  d.MimeType,
		Status:    d.Status,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

// messageResponse is the wire shape of a chat message.
type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

func toMessageResponse(m storage.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// requestUserID pulls the authenticated user out of the context set by the
// bearer middleware.
func requestUserID(ctx context.Context) string {
	return auth.UserID(ctx)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
