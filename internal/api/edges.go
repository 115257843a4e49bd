package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/fieldselection"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

const (
	defaultEdgeLimit = 50
	maxEdgeLimit     = 1000
	edgeReadTimeout  = 3 * time.Second
)

// EdgeHandler exposes read-only edge lookups against the index.
type EdgeHandler struct {
	index   webgraph.Index
	policy  *fieldselection.Policy
	timeout time.Duration
	logger  *zap.Logger
}

// NewEdgeHandler wires the index, field selection and logger.
func NewEdgeHandler(index webgraph.Index, policy *fieldselection.Policy, logger *zap.Logger) *EdgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = fieldselection.SelectAll()
	}
	return &EdgeHandler{
		index:   index,
		policy:  policy,
		timeout: edgeReadTimeout,
		logger:  logger,
	}
}

// GetEdge handles GET /v1/edges/{edge_id}. It returns {"edge": {...}},
// 404 when the index has no such record, 503 without an index, or 500.
func (h *EdgeHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "edge index unavailable")
		return
	}
	id := chi.URLParam(r, "edge_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "edge_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	doc, err := h.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, webgraph.ErrNotFound) {
			writeError(w, http.StatusNotFound, "edge not found")
			return
		}
		h.logger.Error("get edge failed", zap.String("edge_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load edge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edge": doc})
}

// FindEdges handles GET /v1/edges?field=&value=&limit=. field is a schema
// field name; its storage alias is used for the lookup.
func (h *EdgeHandler) FindEdges(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "edge index unavailable")
		return
	}
	q := r.URL.Query()
	field := webgraph.Field(strings.TrimSpace(q.Get("field")))
	value := q.Get("value")
	if field == "" || value == "" {
		writeError(w, http.StatusBadRequest, "field and value are required")
		return
	}
	if !webgraph.IsKnownField(string(field)) || !h.policy.Tracks(field) {
		writeError(w, http.StatusBadRequest, "field is not indexed")
		return
	}
	limit, err := parseLimit(r, defaultEdgeLimit, maxEdgeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	docs, err := h.index.FindByField(ctx, h.policy.Alias(field), value, limit)
	if err != nil {
		h.logger.Error("find edges failed", zap.String("field", string(field)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to find edges")
		return
	}
	if docs == nil {
		docs = []webgraph.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": docs})
}

type schemaDTO struct {
	SelectAll bool          `json:"select_all"`
	Lazy      bool          `json:"lazy"`
	Fields    []schemaField `json:"fields"`
}

type schemaField struct {
	Field string `json:"field"`
	Alias string `json:"alias"`
}

// Schema handles GET /v1/schema and lists the tracked fields with aliases.
func (h *EdgeHandler) Schema(w http.ResponseWriter, _ *http.Request) {
	dto := schemaDTO{SelectAll: h.policy.IsSelectAll(), Lazy: h.policy.Lazy()}
	for _, f := range webgraph.AllFields {
		if h.policy.Tracks(f) {
			dto.Fields = append(dto.Fields, schemaField{Field: string(f), Alias: h.policy.Alias(f)})
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}
