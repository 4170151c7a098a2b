// Package httpapi exposes the catalog over a small REST surface. The routing
// layer is deliberately thin: it decodes requests, delegates to the document
// manager, and maps each error kind onto exactly one status code.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"samplecore/internal/archive"
	"samplecore/internal/core"
	"samplecore/pkg/domain"
)

// kindsByPath maps URL collection segments onto document kinds. Both the
// plural collection spelling and the bare kind name are accepted.
var kindsByPath = map[string]domain.Kind{
	"sample":     domain.KindSample,
	"samples":    domain.KindSample,
	"request":    domain.KindRequest,
	"requests":   domain.KindRequest,
	"container":  domain.KindContainer,
	"containers": domain.KindContainer,
}

// Handler serves the catalog REST API.
type Handler struct {
	svc      *core.Service
	archiver *archive.HistoryArchiver
	logger   core.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithArchiver enables the history-archive endpoint.
func WithArchiver(a *archive.HistoryArchiver) HandlerOption {
	return func(h *Handler) { h.archiver = a }
}

// WithLogger installs a request logger.
func WithLogger(l core.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler constructs the API handler over the document manager.
func NewHandler(svc *core.Service, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, logger: core.NopLogger()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the configured route set.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/{collection}", h.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{collection}", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{collection}/{id}", h.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{collection}/{id}", h.handleUpdate).Methods(http.MethodPatch)
	api.HandleFunc("/{collection}/{id}", h.handlePurge).Methods(http.MethodDelete)
	api.HandleFunc("/{collection}/{id}/revisions", h.handleRevisions).Methods(http.MethodGet)
	api.HandleFunc("/{collection}/{id}/revert", h.handleRevert).Methods(http.MethodPost)
	api.HandleFunc("/{collection}/{id}/archive", h.handleArchive).Methods(http.MethodPost)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func kindFor(r *http.Request) (domain.Kind, bool) {
	kind, ok := kindsByPath[mux.Vars(r)["collection"]]
	return kind, ok
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	var fields domain.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.svc.Create(r.Context(), kind, fields)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	filter := domain.Filter{}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "revision" {
			if n, err := strconv.Atoi(values[0]); err == nil {
				filter[key] = n
				continue
			}
		}
		filter[key] = values[0]
	}
	docs, err := h.svc.Find(r.Context(), kind, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	doc, err := h.svc.Get(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	var changes domain.Fields
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.svc.Update(r.Context(), kind, mux.Vars(r)["id"], changes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	if err := h.svc.Purge(r.Context(), kind, mux.Vars(r)["id"]); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevisions(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	docs, err := h.svc.Revisions(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": docs})
}

type revertRequest struct {
	Revision *int `json:"revision"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	var req revertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Revision == nil {
		writeError(w, http.StatusBadRequest, "body must carry a revision number")
		return
	}
	doc, err := h.svc.Revert(r.Context(), kind, mux.Vars(r)["id"], *req.Revision)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "history archive not configured")
		return
	}
	kind, ok := kindFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	info, err := h.archiver.Archive(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"archive": info})
}

// writeDomainError maps each error kind onto its one status code.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	var (
		validation  domain.ValidationError
		duplicate   domain.DuplicateNameError
		immutable   domain.ImmutableFieldError
		notFound    domain.NotFoundError
		revNotFound domain.RevisionNotFoundError
		conflict    domain.ConflictError
		storage     domain.StorageError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &immutable):
		return http.StatusBadRequest
	case errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &revNotFound):
		return http.StatusNotFound
	case errors.As(err, &storage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
