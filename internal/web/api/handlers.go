// Package api exposes the engine over HTTP: schema views, record CRUD,
// listing, nested relationship listing, and cache invalidation.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/engine"
	"github.com/schemakit/schemakit/internal/query"
	"github.com/schemakit/schemakit/internal/schema"
)

// Handler serves the engine's HTTP surface.
type Handler struct {
	engine *engine.Engine
	log    *zap.Logger
}

// NewHandler creates an API handler backed by an engine.
func NewHandler(eng *engine.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: eng, log: log}
}

// Routes builds the chi router for the API surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Delete("/cache", h.clearAllCache)
	r.Delete("/cache/{model}", h.clearCache)

	r.Route("/{model}", func(r chi.Router) {
		r.Get("/schema", h.getSchema)
		r.Get("/", h.list)
		r.Post("/", h.create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.find)
			r.Put("/", h.update)
			r.Patch("/", h.update)
			r.Delete("/", h.delete)
			r.Get("/{relation}", h.listRelated)
		})
	})

	return r
}

// listMeta is the pagination envelope of listing responses.
type listMeta struct {
	Page     int `json:"page"`
	PerPage  int `json:"perPage"`
	Total    int `json:"total"`
	Filtered int `json:"filtered"`
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")

	parsed, err := schema.ParseReference(ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	doc, err := h.engine.GetSchema(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Related documents follow the caller's qualifier; the storage path the
	// base document resolved to is only a fallback.
	connection := parsed.Connection
	if connection == "" {
		connection = doc.SourceConnection
	}

	view := h.engine.FilterSchemaWithRelated(
		r.Context(),
		doc,
		ParseContext(r),
		ParseBool(r, "related"),
		r.URL.Query().Get("relatedContext"),
		connection,
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": view})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")
	req := ParseListRequest(r)

	result, err := h.engine.List(r.Context(), ref, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result.Rows,
		"meta": metaFor(req, result.TotalCount, result.FilteredCount),
	})
}

func (h *Handler) listRelated(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")
	relation := chi.URLParam(r, "relation")
	req := ParseListRequest(r)

	result, err := h.engine.ListRelated(r.Context(), ref, id, relation, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result.Rows,
		"meta": metaFor(req, result.TotalCount, result.TotalCount),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")

	data, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	ent, err := h.engine.GetModelInstance(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	record, err := ent.Create(r.Context(), data)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": record})
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")

	ent, err := h.engine.GetModelInstance(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	record, err := ent.Find(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": record})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")

	data, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	ent, err := h.engine.GetModelInstance(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	record, err := ent.Update(r.Context(), id, data)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": record})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")

	ent, err := h.engine.GetModelInstance(r.Context(), ref)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := ent.Delete(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	h.engine.ClearCache(r.Context(), model, r.URL.Query().Get("connection"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearAllCache(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearAllCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// decodeRecord reads a JSON object body. A false return means the error
// response was already written.
func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be a JSON object")
		return nil, false
	}
	return data, true
}

func metaFor(req query.ListRequest, total, filtered int) listMeta {
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = query.DefaultPerPage
	}
	return listMeta{Page: page, PerPage: perPage, Total: total, Filtered: filtered}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
