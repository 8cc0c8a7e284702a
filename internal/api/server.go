// Package api wires the HTTP surface: CRM REST routes, their event streams,
// the chat endpoint and the health probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/events"
	"github.com/sells-group/dashboard-api/internal/model"
	"github.com/sells-group/dashboard-api/internal/sse"
	"github.com/sells-group/dashboard-api/internal/store"
)

const readyTimeout = 2 * time.Second

// ProviderCheck reports whether the chat provider is usable, with a
// human-readable explanation.
type ProviderCheck func() (bool, string)

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	SSE            sse.Options
	Chat           http.Handler
	Provider       ProviderCheck
}

// Server owns the router dependencies.
type Server struct {
	store store.Store
	hub   *events.Hub
	opts  Options
}

// NewServer creates a Server. Mutations are published on hub after they
// are written to st.
func NewServer(st store.Store, hub *events.Hub, opts Options) *Server {
	return &Server{store: st, hub: hub, opts: opts}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(s.opts.AllowedOrigins)))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	if s.opts.Chat != nil {
		r.Method(http.MethodPost, "/api/chat", s.opts.Chat)
	}

	mount(r, "/api/contacts", s.hub, s.opts.SSE, resource[model.Contact]{
		kind:   events.ResourceContact,
		label:  "contact",
		create: s.store.CreateContact,
		get:    s.store.GetContact,
		update: s.store.UpdateContact,
		remove: s.store.DeleteContact,
		list:   s.store.ListContacts,
		search: s.store.SearchContacts,
		name:   func(c *model.Contact) string { return c.Name },
		setID:  func(c *model.Contact, id string) { c.ID = id },
	})
	mount(r, "/api/companies", s.hub, s.opts.SSE, resource[model.Company]{
		kind:   events.ResourceCompany,
		label:  "company",
		create: s.store.CreateCompany,
		get:    s.store.GetCompany,
		update: s.store.UpdateCompany,
		remove: s.store.DeleteCompany,
		list:   s.store.ListCompanies,
		name:   func(c *model.Company) string { return c.Name },
		setID:  func(c *model.Company, id string) { c.ID = id },
	})
	mount(r, "/api/projects", s.hub, s.opts.SSE, resource[model.Project]{
		kind:     events.ResourceProject,
		label:    "project",
		create:   s.store.CreateProject,
		get:      s.store.GetProject,
		update:   s.store.UpdateProject,
		remove:   s.store.DeleteProject,
		list:     s.store.ListProjects,
		name:     func(p *model.Project) string { return p.Name },
		setID:    func(p *model.Project, id string) { p.ID = id },
		validate: validateProject,
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"Retry-After", "x-vercel-ai-ui-message-stream"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func validateProject(p *model.Project) string {
	if p.Status != "" && !p.Status.Valid() {
		return "invalid status: " + string(p.Status)
	}
	return ""
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readinessResponse{Status: "ok", Subsystems: map[string]subsystemStatus{}}
	code := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		resp.Subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		code = http.StatusServiceUnavailable
	} else {
		resp.Subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.opts.Provider == nil {
		resp.Subsystems["provider"] = subsystemStatus{Status: "skipped"}
	} else if ok, msg := s.opts.Provider(); ok {
		resp.Subsystems["provider"] = subsystemStatus{Status: "ok"}
	} else {
		resp.Subsystems["provider"] = subsystemStatus{Status: "error", Error: msg}
		code = http.StatusServiceUnavailable
	}

	if code != http.StatusOK {
		resp.Status = "unavailable"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
