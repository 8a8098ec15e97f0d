package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mihaimyh/stripecustomers/pkg/customers"
	"github.com/mihaimyh/stripecustomers/pkg/document"
)

// Handler provides HTTP endpoints for creating and reading documents
type Handler struct {
	config Config
}

// Create decodes a JSON object, saves it as a new document and replies 201
// with the stored document. Pre-save hooks run as part of the save.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.handleError(w, r, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}

	// 1. Decode body
	body := http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	dec := json.NewDecoder(body)

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(w, r, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		h.handleError(w, r, fmt.Errorf("invalid JSON body: %w", err), http.StatusBadRequest)
		return
	}
	if data == nil {
		h.handleError(w, r, errors.New("request body must be a JSON object"), http.StatusBadRequest)
		return
	}
	if dec.More() {
		h.handleError(w, r, errors.New("request body must contain a single JSON object"), http.StatusBadRequest)
		return
	}

	// 2. Server-managed fields are never taken from the client
	if err := RejectProtected(data, h.config.ProtectedFields); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}

	// 3. Save (runs hooks)
	doc := h.config.Model.New(data)
	if err := h.config.Model.Save(r.Context(), doc); err != nil {
		h.handleError(w, r, err, StatusCode(err))
		return
	}

	h.writeDocument(w, http.StatusCreated, doc)
}

// Get replies 200 with the document identified by GetID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.handleError(w, r, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}

	doc, err := LoadDocument(r.Context(), h.config.Model, h.config.GetID(r))
	if err != nil {
		h.handleError(w, r, err, StatusCode(err))
		return
	}

	h.writeDocument(w, http.StatusOK, doc)
}

func (h *Handler) writeDocument(w http.ResponseWriter, status int, doc *document.Document) {
	data := doc.Data()
	data[document.IDField] = doc.ID().Hex()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response already started
		h.config.Logger.Warn("failed to encode document",
			document.LogField{Key: "id", Value: doc.ID().Hex()},
			document.LogField{Key: "error", Value: err},
		)
	}
}

// StatusCode maps save and load errors to HTTP status codes.
// Useful in custom OnError handlers.
func StatusCode(err error) int {
	var extErr *customers.ExternalServiceError
	var fieldErr *customers.FieldError

	switch {
	case errors.As(err, &extErr):
		return http.StatusBadGateway
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMissingID),
		errors.Is(err, ErrProtectedField),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, document.ErrValidation),
		errors.Is(err, document.ErrImmutableID),
		errors.Is(err, document.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, document.ErrDuplicateKey),
		errors.Is(err, ErrMissingField):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		h.config.Logger.Error("request failed",
			document.LogField{Key: "path", Value: r.URL.Path},
			document.LogField{Key: "status", Value: statusCode},
			document.LogField{Key: "error", Value: err},
		)
	}

	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	// Default error handling
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encodeErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()}); encodeErr != nil {
		// Log encoding error but response already sent
		_ = encodeErr
	}
}
