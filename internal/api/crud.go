package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/events"
	"github.com/sells-group/dashboard-api/internal/sse"
	"github.com/sells-group/dashboard-api/internal/store"
)

const (
	maxRecordBytes   = 1 << 20
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// resource binds one record type to its store calls.
type resource[T any] struct {
	kind  events.Resource
	label string

	create func(ctx context.Context, v T) (*T, error)
	get    func(ctx context.Context, id string) (*T, error)
	update func(ctx context.Context, v T) (*T, error)
	remove func(ctx context.Context, id string) error
	list   func(ctx context.Context, page store.Page) ([]T, int, error)
	// search backs ?q= when set.
	search func(ctx context.Context, query string, limit int) ([]T, error)

	name     func(v *T) string
	setID    func(v *T, id string)
	validate func(v *T) string
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func mount[T any](r chi.Router, prefix string, hub *events.Hub, opts sse.Options, res resource[T]) {
	h := &crudHandler[T]{res: res, hub: hub}
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/events", sse.Handler(hub, res.kind, opts))
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type crudHandler[T any] struct {
	res resource[T]
	hub *events.Hub
}

func (h *crudHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" && h.res.search != nil {
		items, err := h.res.search(r.Context(), q, page.Limit)
		if err != nil {
			h.storeError(w, "search", err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, listResponse[T]{Items: items, Total: len(items), Limit: page.Limit})
		return
	}

	items, total, err := h.res.list(r.Context(), page)
	if err != nil {
		h.storeError(w, "list", err)
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, listResponse[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *crudHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.res.get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *crudHandler[T]) create(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decode(w, r)
	if !ok {
		return
	}
	saved, err := h.res.create(r.Context(), *v)
	if err != nil {
		h.storeError(w, "create", err)
		return
	}
	h.hub.Publish(h.res.kind, events.ActionCreated, saved)
	writeJSON(w, http.StatusCreated, saved)
}

func (h *crudHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.res.setID(v, chi.URLParam(r, "id"))
	saved, err := h.res.update(r.Context(), *v)
	if err != nil {
		h.storeError(w, "update", err)
		return
	}
	h.hub.Publish(h.res.kind, events.ActionUpdated, saved)
	writeJSON(w, http.StatusOK, saved)
}

func (h *crudHandler[T]) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.res.remove(r.Context(), id); err != nil {
		h.storeError(w, "delete", err)
		return
	}
	h.hub.Publish(h.res.kind, events.ActionDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a record body, writing the 400 itself.
func (h *crudHandler[T]) decode(w http.ResponseWriter, r *http.Request) (*T, bool) {
	v := new(T)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if strings.TrimSpace(h.res.name(v)) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}
	if h.res.validate != nil {
		if msg := h.res.validate(v); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return nil, false
		}
	}
	return v, true
}

func (h *crudHandler[T]) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, h.res.label+" not found")
		return
	}
	zap.L().Error("api: store failure",
		zap.String("resource", string(h.res.kind)),
		zap.String("op", op),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func pageFromQuery(r *http.Request) (store.Page, error) {
	var page store.Page
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, eris.New("invalid " + p.key)
		}
		*p.dst = n
	}
	return page.Normalize(defaultPageLimit, maxPageLimit), nil
}
