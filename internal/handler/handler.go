package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atlekbai/aicfo/internal/frame"
	"github.com/atlekbai/aicfo/internal/query"
	"github.com/atlekbai/aicfo/internal/schema"
	"github.com/atlekbai/aicfo/internal/service"
	"github.com/atlekbai/aicfo/internal/viewtable"
)

type Handler struct {
	svc   *service.QueryService
	cache *schema.Cache
}

func New(svc *service.QueryService, cache *schema.Cache) *Handler {
	return &Handler{svc: svc, cache: cache}
}

// Register mounts the REST routes.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tables", h.ListTables).Methods(http.MethodGet)
	api.HandleFunc("/tables/{table}", h.GetTable).Methods(http.MethodGet)
	api.HandleFunc("/transform", h.Transform).Methods(http.MethodPost)
	api.HandleFunc("/execute", h.Execute).Methods(http.MethodPost)
	api.HandleFunc("/next-page", h.NextPage).Methods(http.MethodPost)
	api.HandleFunc("/render", h.Render).Methods(http.MethodPost)
	api.HandleFunc("/answer", h.Answer).Methods(http.MethodPost)
}

type transformRequest struct {
	Query     string `json:"query"`
	Table     string `json:"table"`
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	UseInttID string `json:"use_intt_id"`
	Limit     int    `json:"limit"`
	Template  string `json:"template"`
}

func (req transformRequest) input() service.TransformInput {
	return service.TransformInput{
		Query:     req.Query,
		Table:     req.Table,
		CompanyID: req.CompanyID,
		User:      viewtable.User{UserID: req.UserID, UseInttID: req.UseInttID},
		Limit:     req.Limit,
	}
}

type executeRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type renderRequest struct {
	Template string          `json:"template"`
	Data     json.RawMessage `json:"data"`
}

// ListTables handles GET /api/tables
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables := make([]*schema.TableDef, 0, h.cache.TableCount())
	for _, k := range h.cache.Keys() {
		tables = append(tables, h.cache.Get(k))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// GetTable handles GET /api/tables/{table}
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["table"]
	t := h.cache.Get(key)
	if t == nil {
		writeError(w, http.StatusNotFound, "TABLE_NOT_FOUND",
			"Table not found",
			"No logical table registered with key '"+key+"'")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Transform handles POST /api/transform
func (h *Handler) Transform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if !decode(w, r, &req) || !validTransform(w, req) {
		return
	}
	out, err := h.svc.Transform(req.input())
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Execute handles POST /api/execute
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) || !validExecute(w, r, &req) {
		return
	}
	page, err := h.svc.Execute(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// NextPage handles POST /api/next-page
func (h *Handler) NextPage(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) || !validExecute(w, r, &req) {
		return
	}
	page, err := h.svc.NextPage(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Render handles POST /api/render
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decode(w, r, &req) {
		return
	}
	rows := frame.NewResultSet(nil, nil)
	if len(req.Data) > 0 && string(req.Data) != "null" {
		if err := json.Unmarshal(req.Data, rows); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid data", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.Render(req.Template, rows))
}

// Answer handles POST /api/answer
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if !decode(w, r, &req) || !validTransform(w, req) {
		return
	}
	out, err := h.svc.Answer(r.Context(), req.input(), req.Template)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeQueryError reports a refused query as the client's fault and anything
// else as a server failure.
func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrRejected) {
		writeError(w, http.StatusBadRequest, "QUERY_REJECTED", "Query rejected", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
		return false
	}
	return true
}

func validTransform(w http.ResponseWriter, req transformRequest) bool {
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", "query is required", "")
		return false
	}
	if req.Table == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", "table is required", "")
		return false
	}
	return true
}

// validExecute checks the body and lets a ?limit= query parameter override
// the body's limit.
func validExecute(w http.ResponseWriter, r *http.Request, req *executeRequest) bool {
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", "query is required", "")
		return false
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := query.ParseLimit(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
			return false
		}
		req.Limit = n
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", fmt.Sprintf("invalid limit %d", req.Limit), "")
		return false
	}
	return true
}
