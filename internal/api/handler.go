package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
	"github.com/eugenenazirov/gin-bindings/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultMaxBodyBytes = 1 << 20

// Handler wires the binding loader and table storage into HTTP handlers.
type Handler struct {
	storage storage.Storage
	loader  *bindings.Loader

	clock        func() time.Time
	maxBodyBytes int64

	mu        sync.RWMutex
	updatedAt map[string]time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxBodyBytes limits the size of binding text accepted by PUT and POST.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store storage.Storage, loader *bindings.Loader, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage:      store,
		loader:       loader,
		maxBodyBytes: defaultMaxBodyBytes,
		updatedAt:    make(map[string]time.Time),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MarkUpdated records name as changed now. Tables stored outside the API,
// such as files preloaded at startup, are registered through it.
func (h *Handler) MarkUpdated(name string) {
	h.mu.Lock()
	h.updatedAt[name] = h.clock()
	h.mu.Unlock()
}

func (h *Handler) lastUpdated(name string) time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updatedAt[name]
}

func (h *Handler) forget(name string) {
	h.mu.Lock()
	delete(h.updatedAt, name)
	h.mu.Unlock()
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	_ = r
	summaries, err := h.storage.List()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := listTablesResponse{Tables: make([]tableSummary, 0, len(summaries))}
	for _, s := range summaries {
		resp.Tables = append(resp.Tables, tableSummary{Summary: s, UpdatedAt: h.lastUpdated(s.Name)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	table, ok := h.fetchTable(w, name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTableResponse(name, table, h.lastUpdated(name), ""))
}

func (h *Handler) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	key := r.PathValue("key")
	table, ok := h.fetchTable(w, name)
	if !ok {
		return
	}

	value, err := table.Lookup(key)
	if err != nil {
		if errors.Is(err, bindings.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	pos, _ := table.Position(key)
	resp := bindingResponse{
		Table:    name,
		Key:      key,
		Kind:     value.Kind.String(),
		Value:    value.Native(),
		Text:     value.String(),
		Position: pos,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTargets(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	table, ok := h.fetchTable(w, name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, targetsResponse{Table: name, Targets: table.Targets()})
}

// handleGetParams returns what a configurable called in the ?scope= scope
// would receive, with inner scopes overriding outer ones.
func (h *Handler) handleGetParams(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	target := r.PathValue("target")
	scope := r.URL.Query().Get("scope")
	table, ok := h.fetchTable(w, name)
	if !ok {
		return
	}

	params := table.Params(scope, target)
	if len(params) == 0 {
		writeError(w, http.StatusNotFound, "Target not found",
			fmt.Sprintf("no parameters bound for %s", target))
		return
	}

	resp := paramsResponse{Table: name, Target: target, Scope: scope, Params: make(map[string]any, len(params))}
	for param, value := range params {
		resp.Params[param] = value.Native()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	table, ok := h.fetchTable(w, r.PathValue("name"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := table.WriteConfig(&buf); err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handlePutTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := storage.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid table name", err.Error())
		return
	}

	table, ok := h.loadBody(w, r, name+".gin")
	if !ok {
		return
	}

	status := http.StatusOK
	if _, err := h.storage.Get(name); errors.Is(err, storage.ErrTableNotFound) {
		status = http.StatusCreated
	}

	if err := h.storage.Put(name, table); err != nil {
		writeInternalError(w, err)
		return
	}
	h.MarkUpdated(name)

	writeJSON(w, status, newTableResponse(name, table, h.lastUpdated(name), "Table stored successfully"))
}

func (h *Handler) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.storage.Delete(name); err != nil {
		writeStorageError(w, err)
		return
	}
	h.forget(name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	table, ok := h.loadBody(w, r, "request.gin")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTableResponse("", table, time.Time{}, ""))
}

func (h *Handler) fetchTable(w http.ResponseWriter, name string) (*bindings.Table, bool) {
	table, err := h.storage.Get(name)
	if err != nil {
		writeStorageError(w, err)
		return nil, false
	}
	return table, true
}

// loadBody reads binding text from the request body and resolves it as a
// file called name. Request text is untrusted, so the handler's loader
// should be built with bindings.WithConfinedIncludes.
func (h *Handler) loadBody(w http.ResponseWriter, r *http.Request, name string) (*bindings.Table, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("binding text must not exceed %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to read request body")
		return nil, false
	}

	table, err := h.loader.LoadSource(r.Context(), name, body)
	if err != nil {
		writeLoadError(w, err)
		return nil, false
	}
	return table, true
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type tableSummary struct {
	storage.Summary
	UpdatedAt time.Time `json:"updatedAt"`
}

type listTablesResponse struct {
	Tables []tableSummary `json:"tables"`
}

type tableResponse struct {
	Name      string     `json:"name,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Files     []string   `json:"files"`
	Imports   any        `json:"imports"`
	Macros    any        `json:"macros"`
	Bindings  any        `json:"bindings"`
	Message   string     `json:"message,omitempty"`
}

func newTableResponse(name string, table *bindings.Table, updatedAt time.Time, message string) tableResponse {
	m := table.ToMap()
	resp := tableResponse{
		Name:     name,
		Files:    table.Files(),
		Imports:  m["imports"],
		Macros:   m["macros"],
		Bindings: m["bindings"],
		Message:  message,
	}
	if resp.Files == nil {
		resp.Files = []string{}
	}
	if !updatedAt.IsZero() {
		resp.UpdatedAt = &updatedAt
	}
	return resp
}

type bindingResponse struct {
	Table    string            `json:"table"`
	Key      string            `json:"key"`
	Kind     string            `json:"kind"`
	Value    any               `json:"value"`
	Text     string            `json:"text"`
	Position bindings.Position `json:"position"`
}

type targetsResponse struct {
	Table   string   `json:"table"`
	Targets []string `json:"targets"`
}

type paramsResponse struct {
	Table  string         `json:"table"`
	Target string         `json:"target"`
	Scope  string         `json:"scope,omitempty"`
	Params map[string]any `json:"params"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid table name", err.Error())
	case errors.Is(err, storage.ErrTableNotFound):
		writeError(w, http.StatusNotFound, "Table not found", err.Error())
	default:
		writeInternalError(w, err)
	}
}

// writeLoadError reports a failed load as 422, pointing at the offending
// file and line when the error carries a position.
func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
		return
	}

	resp := errorResponse{Error: loadErrorTitle(err), Details: err.Error()}
	if pos, ok := bindings.Location(err); ok {
		resp.File = pos.File
		resp.Line = pos.Line
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func loadErrorTitle(err error) string {
	switch {
	case errors.Is(err, bindings.ErrSyntax):
		return "Syntax error"
	case errors.Is(err, bindings.ErrUnresolvedMacro):
		return "Unresolved macro"
	case errors.Is(err, bindings.ErrCyclicMacro):
		return "Cyclic macro"
	case errors.Is(err, bindings.ErrDuplicateBinding):
		return "Duplicate binding"
	case errors.Is(err, bindings.ErrCyclicInclude):
		return "Cyclic include"
	case errors.Is(err, bindings.ErrIncludeNotFound):
		return "Include not found"
	case errors.Is(err, bindings.ErrIncludeOutsideRoot):
		return "Include not allowed"
	default:
		return "Invalid bindings"
	}
}
