package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/vish/internal/knowledge"
)

const multipartOverhead = 1 << 20

// DocumentsHandler manages user-uploaded reference documents.
type DocumentsHandler struct {
	docs   *knowledge.Documents
	logger *slog.Logger
}

// NewDocumentsHandler creates a DocumentsHandler.
func NewDocumentsHandler(docs *knowledge.Documents, logger *slog.Logger) *DocumentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsHandler{docs: docs, logger: logger}
}

// RegisterRoutes registers document routes.
func (h *DocumentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload-document", h.Upload)
	r.Delete("/delete-document/{id}", h.Delete)
	r.Get("/documents", h.List)
}

// Upload stores the multipart field "document".
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, knowledge.MaxDocumentSize+multipartOverhead)
	file, header, err := r.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	doc, err := h.docs.Save(header.Filename, file)
	switch {
	case errors.Is(err, knowledge.ErrUnsupportedType), errors.Is(err, knowledge.ErrInvalidDocumentRef):
		Error(w, http.StatusBadRequest, "Only .txt and .md files are supported")
		return
	case errors.Is(err, knowledge.ErrDocumentTooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	case err != nil:
		h.logger.Error("Error uploading document", "call", "save_document", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to upload document")
		return
	}

	h.logger.Info("Document uploaded", "document_id", doc.ID, "size", doc.Size)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      doc.ID,
		"name":    doc.Name,
		"size":    doc.Size,
	})
}

// Delete removes a document by id.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.docs.Delete(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, knowledge.ErrInvalidDocumentID), errors.Is(err, knowledge.ErrDocumentNotFound):
		Error(w, http.StatusNotFound, "Document not found")
		return
	case err != nil:
		h.logger.Error("Error deleting document", "call", "delete_document", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Document deleted successfully",
	})
}

// List returns every uploaded document.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List()
	if err != nil {
		h.logger.Error("Error listing documents", "call", "list_documents", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}
