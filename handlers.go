package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// DocumentStore is the persistence the handlers depend on.
type DocumentStore interface {
	Available() bool
	Name() string
	CreateDocument(ctx context.Context, collection string, doc Document) (string, error)
	GetDocuments(ctx context.Context, collection string, filter Document, limit int64) ([]Document, error)
	UpdateOne(ctx context.Context, collection, id string, fields Document) (int64, error)
	DeleteOne(ctx context.Context, collection, id string) (int64, error)
	ListCollections(ctx context.Context) ([]string, error)
}

// MediaSearcher looks up media metadata from an upstream provider.
type MediaSearcher interface {
	Search(ctx context.Context, query, mediaType string, limit int) ([]SearchResult, error)
}

// Handler handles HTTP requests for entries and searches.
type Handler struct {
	store          DocumentStore
	searcher       MediaSearcher
	logger         hclog.Logger
	databaseURLSet bool
	now            func() time.Time
}

// NewHandler creates a Handler with dependencies. databaseURLSet is only
// reported by the diagnostics endpoint.
func NewHandler(store DocumentStore, searcher MediaSearcher, logger hclog.Logger, databaseURLSet bool) *Handler {
	return &Handler{
		store:          store,
		searcher:       searcher,
		logger:         logger,
		databaseURLSet: databaseURLSet,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /test", h.handleDiagnostics)
	mux.HandleFunc("POST /entries", h.handleCreateEntry)
	mux.HandleFunc("GET /entries", h.handleListEntries)
	mux.HandleFunc("PATCH /entries/{entry_id}", h.handleUpdateEntry)
	mux.HandleFunc("DELETE /entries/{entry_id}", h.handleDeleteEntry)
	mux.HandleFunc("GET /search", h.handleSearch)
	return mux
}

// handleRoot processes GET /.
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "NebulaDiary API running"})
}

// diagnostics is the body of GET /test.
type diagnostics struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	DatabaseURL      string   `json:"database_url"`
	DatabaseName     string   `json:"database_name"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

const (
	maxDiagCollections = 10
	maxDiagMessage     = 80
)

// handleDiagnostics processes GET /test. It always answers 200.
func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probe(r.Context()))
}

func (h *Handler) probe(ctx context.Context) (d diagnostics) {
	d = diagnostics{
		Backend:          "✅ Running",
		Database:         "❌ Not Available",
		DatabaseURL:      "❌ Not Set",
		DatabaseName:     "❌ Not Set",
		ConnectionStatus: "Not Connected",
		Collections:      []string{},
	}
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("diagnostics probe panicked", "panic", rec)
			d.Database = "❌ Error: " + truncate(fmt.Sprint(rec), maxDiagMessage)
		}
	}()

	if h.store == nil || !h.store.Available() {
		d.Database = "⚠️ Available but not initialized"
		return d
	}
	d.Database = "✅ Available"
	if h.databaseURLSet {
		d.DatabaseURL = "✅ Set"
	}
	d.DatabaseName = h.store.Name()
	if d.DatabaseName == "" {
		d.DatabaseName = "✅ Connected"
	}
	d.ConnectionStatus = "Connected"

	names, err := h.store.ListCollections(ctx)
	if err != nil {
		h.logger.Warn("listing collections failed", "error", err)
		d.Database = "⚠️ Connected but Error: " + truncate(err.Error(), maxDiagMessage)
		return d
	}
	d.Collections = head(names, maxDiagCollections)
	d.Database = "✅ Connected & Working"
	return d
}

// handleCreateEntry processes POST /entries.
func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	id, err := h.store.CreateDocument(r.Context(), entryCollection, req.Document())
	if err != nil {
		h.logger.Error("error creating entry", "error", err)
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleListEntries processes GET /entries.
func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	docs, err := h.store.GetDocuments(r.Context(), entryCollection, q.Filter, q.Limit)
	if err != nil {
		h.logger.Error("error listing entries", "error", err)
		h.writeError(w, err)
		return
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e, err := entryFromDocument(doc)
		if err != nil {
			h.logger.Error("error decoding entry", "id", doc[idField], "error", err)
			h.writeError(w, err)
			return
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleUpdateEntry processes PATCH /entries/{entry_id}.
func (h *Handler) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("entry_id")
	var req UpdateEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	if !h.store.Available() {
		h.writeError(w, ErrStorageUnavailable)
		return
	}
	if req.Empty() {
		writeJSON(w, http.StatusOK, map[string]bool{"updated": false})
		return
	}
	if !validID(id) {
		h.writeError(w, ErrNotFound)
		return
	}

	matched, err := h.store.UpdateOne(r.Context(), entryCollection, id, req.Fields(h.now()))
	if err != nil {
		h.logger.Error("error updating entry", "id", id, "error", err)
		h.writeError(w, err)
		return
	}
	if matched == 0 {
		h.writeError(w, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// handleDeleteEntry processes DELETE /entries/{entry_id}.
func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("entry_id")
	if !h.store.Available() {
		h.writeError(w, ErrStorageUnavailable)
		return
	}
	if !validID(id) {
		h.writeError(w, ErrNotFound)
		return
	}

	deleted, err := h.store.DeleteOne(r.Context(), entryCollection, id)
	if err != nil {
		h.logger.Error("error deleting entry", "id", id, "error", err)
		h.writeError(w, err)
		return
	}
	if deleted == 0 {
		h.writeError(w, ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleSearch processes GET /search.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	results, err := h.searcher.Search(r.Context(), q.Query, q.MediaType, q.Limit)
	if err != nil {
		h.logger.Warn("search failed", "media_type", q.MediaType, "error", err)
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// writeError maps err onto a status code and writes it as a detail body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var upstream *UpstreamSearchError
	switch {
	case errors.Is(err, ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Entry not found")
	case errors.Is(err, ErrStorageUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "Database not available")
	case errors.As(err, &upstream):
		writeDetail(w, http.StatusBadGateway, upstream.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a single JSON object from the request body. Unknown
// fields are ignored.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request payload: %v", err)
	}
	return ensureSingleJSON(dec)
}

// ensureSingleJSON ensures only a single JSON object is in the request body.
func ensureSingleJSON(dec *json.Decoder) error {
	if t, err := dec.Token(); err != io.EOF || t != nil {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}

// validID reports whether id could have been assigned by the store.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// entryFromDocument converts a stored document, exposing its id as "id".
func entryFromDocument(doc Document) (Entry, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == idField {
			out["id"] = v
			continue
		}
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
