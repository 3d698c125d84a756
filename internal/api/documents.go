package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ppinheiro86/doctalk/internal/export"
	"github.com/ppinheiro86/doctalk/internal/pipeline"
	"github.com/ppinheiro86/doctalk/internal/storage"
)

var newDocumentID = uuid.NewString

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required: %v", err)
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")
		if !allowedMimeTypes[mimeType] {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"invalid file type %q; supported types are image/jpeg, image/png, application/pdf", mimeType)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read file: %v", err)
			return
		}

		userID := requestUserID(r.Context())
		storagePath := fmt.Sprintf("%s/%d-%s", userID, time.Now().UnixMilli(), header.Filename)

		if err := deps.Blobs.Upload(r.Context(), data, storagePath, mimeType); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store file: %v", err)
			return
		}

		doc := storage.Document{
			ID:          newDocumentID(),
			UserID:      userID,
			FileName:    header.Filename,
			MimeType:    mimeType,
			StoragePath: storagePath,
			Status:      storage.StatusUploaded,
		}
		if err := deps.Store.CreateDocument(doc); err != nil {
			// Do not leave the blob orphaned when the record cannot be
			// written.
			_ = deps.Blobs.Delete(r.Context(), storagePath)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		payload, err := json.Marshal(pipeline.ExtractPayload{DocumentID: doc.ID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.NewString(),
			Type:        pipeline.JobTypeExtract,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue extraction: %v", err)
			return
		}

		created, err := deps.Store.GetDocument(doc.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load document: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toDocumentResponse(created))
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Store.ListDocuments(requestUserID(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		out := make([]documentResponse, len(docs))
		for i, d := range docs {
			out[i] = toDocumentResponse(d)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadOwnedDocument(w, r, deps)
		if !ok {
			return
		}

		out := struct {
			documentResponse
			ExtractedText string `json:"extractedText,omitempty"`
		}{documentResponse: toDocumentResponse(doc)}

		if et, err := deps.Store.GetExtractedText(doc.ID); err == nil {
			out.ExtractedText = et.Text
		} else if !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load extracted text: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// handleDownload streams the document's extracted text and chat history as a
// generated PDF.
func handleDownload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadOwnedDocument(w, r, deps)
		if !ok {
			return
		}

		text := ""
		if et, err := deps.Store.GetExtractedText(doc.ID); err == nil {
			text = et.Text
		} else if !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load extracted text: %v", err)
			return
		}

		messages, err := deps.Store.ListAllMessages(doc.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load messages: %v", err)
			return
		}

		data, err := export.Transcript(doc, text, messages)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate PDF: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="download.pdf"`)
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Write(data)
	}
}

// loadOwnedDocument resolves {id} to a document owned by the requester. It
// writes the 404 itself; ownership failures are indistinguishable from
// missing documents.
func loadOwnedDocument(w http.ResponseWriter, r *http.Request, deps Deps) (storage.Document, bool) {
	id := chi.URLParam(r, "id")

	doc, err := deps.Store.GetDocument(id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "document not found")
		return storage.Document{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
		return storage.Document{}, false
	}
	if doc.UserID != requestUserID(r.Context()) {
		httpError(w, http.StatusNotFound, "not_found", "document not found")
		return storage.Document{}, false
	}
	return doc, true
}
