// Package server exposes a workflow vault over HTTP.
//
// Records are classified, rated and counted against the vault's current
// graph, and workflows can be replaced or deleted while the server runs.
// Every response carries the revision of the graph it used in the
// X-Graph-Revision header.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ezachrisen/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
)

// RevisionHeader names the response header holding the graph revision.
const RevisionHeader = "X-Graph-Revision"

// Server routes API requests to a vault.
type Server struct {
	vault  *workflow.Vault
	opts   Options
	router *chi.Mux
}

// See the functional definitions below for the meaning.
type Options struct {
	Entry    string
	Domain   workflow.Domain
	Parallel int
	Timeout  time.Duration
	Logger   *slog.Logger
}

type Option func(o *Options)

// Start evaluation at the named workflow unless a request names one.
// Default: workflow.DefaultEntry
func Entry(name string) Option {
	return func(o *Options) {
		o.Entry = name
	}
}

// Count over d unless a request gives a domain.
// Default: workflow.DefaultDomain
func Domain(d workflow.Domain) Option {
	return func(o *Options) {
		o.Domain = d
	}
}

// Evaluate rate and count requests with n workers.
func Parallel(n int) Option {
	return func(o *Options) {
		o.Parallel = n
	}
}

// Abort requests that run longer than d.
// Default: 60 seconds
func Timeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// Log requests and mutations to l.
// Default: slog.Default()
func Logger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// New creates a server for the vault.
func New(v *workflow.Vault, opts ...Option) *Server {
	o := Options{
		Entry:   workflow.DefaultEntry,
		Domain:  workflow.DefaultDomain,
		Timeout: 60 * time.Second,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{vault: v, opts: o}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/classify", s.handleClassify)
		r.Post("/rate", s.handleRate)
		r.Post("/count", s.handleCount)
		r.Get("/tree", s.handleTree)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Get("/{name}", s.handleGetWorkflow)
			r.Put("/{name}", s.handlePutWorkflow)
			r.Delete("/{name}", s.handleDeleteWorkflow)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// part is a record as sent over the wire.
type part struct {
	X int64 `json:"x"`
	M int64 `json:"m"`
	A int64 `json:"a"`
	S int64 `json:"s"`
}

func (p part) record() workflow.Record {
	return workflow.NewRecord(p.X, p.M, p.A, p.S)
}

type step struct {
	Workflow  string `json:"workflow"`
	Rule      int    `json:"rule"`
	Condition string `json:"condition"`
	Outcome   string `json:"outcome"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	g, rev := s.vault.Current()
	respondJSON(w, rev, http.StatusOK, map[string]any{
		"status":     "healthy",
		"workflows":  g.Len(),
		"revision":   rev,
		"lastUpdate": s.vault.LastUpdate(),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Record part   `json:"record"`
		Entry  string `json:"entry,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, "", http.StatusBadRequest, "invalid request body", err)
		return
	}

	g, rev := s.vault.Current()
	route, err := g.Classify(r.Context(), req.Record.record(), workflow.Entry(s.entry(req.Entry)))
	if err != nil {
		respondError(w, rev, statusOf(err), "classification failed", err)
		return
	}

	steps := make([]step, len(route.Steps))
	for i, st := range route.Steps {
		steps[i] = step{Workflow: st.Workflow, Rule: st.Rule, Condition: st.Condition, Outcome: st.Outcome.String()}
	}
	respondJSON(w, rev, http.StatusOK, map[string]any{
		"accepted": route.Accepted(),
		"outcome":  route.Outcome.String(),
		"route":    steps,
	})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []part `json:"records"`
		Entry   string `json:"entry,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, "", http.StatusBadRequest, "invalid request body", err)
		return
	}

	recs := make([]workflow.Record, len(req.Records))
	for i, p := range req.Records {
		recs[i] = p.record()
	}

	g, rev := s.vault.Current()
	rating, err := g.Rate(r.Context(), recs, workflow.Entry(s.entry(req.Entry)), workflow.Parallel(s.opts.Parallel))
	if err != nil {
		respondError(w, rev, statusOf(err), "rating failed", err)
		return
	}
	respondJSON(w, rev, http.StatusOK, map[string]any{
		"sum":      rating.Sum,
		"accepted": rating.Accepted,
		"rejected": rating.Rejected,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain *workflow.Domain `json:"domain,omitempty"`
		Entry  string           `json:"entry,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, "", http.StatusBadRequest, "invalid request body", err)
		return
	}
	dom := s.opts.Domain
	if req.Domain != nil {
		dom = *req.Domain
	}

	g, rev := s.vault.Current()
	t, err := g.Count(r.Context(), dom, workflow.Entry(s.entry(req.Entry)), workflow.Parallel(s.opts.Parallel))
	if err != nil {
		respondError(w, rev, statusOf(err), "counting failed", err)
		return
	}
	respondJSON(w, rev, http.StatusOK, map[string]any{
		"domain":        t.Domain,
		"accepted":      t.Accepted,
		"rejected":      t.Rejected,
		"total":         t.Total(),
		"acceptedBoxes": t.AcceptedBoxes,
		"rejectedBoxes": t.RejectedBoxes,
		"splits":        t.Splits,
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	_, rev := s.vault.Current()
	respondJSON(w, rev, http.StatusOK, map[string]any{
		"revision":  rev,
		"workflows": s.vault.Definitions(),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	g, rev := s.vault.Current()
	entry := s.entry(r.URL.Query().Get("entry"))
	tree := g.Tree(entry)
	if tree == "" {
		respondError(w, rev, http.StatusNotFound, "workflow not found", errors.Wrapf(workflow.ErrUnknownWorkflow, "%q", entry))
		return
	}
	w.Header().Set(RevisionHeader, rev)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(tree))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	_, rev := s.vault.Current()
	for _, d := range s.vault.Definitions() {
		if d.Name == name {
			respondJSON(w, rev, http.StatusOK, d)
			return
		}
	}
	respondError(w, rev, http.StatusNotFound, "workflow not found", errors.Wrapf(workflow.ErrUnknownWorkflow, "%q", name))
}

func (s *Server) handlePutWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var d workflow.Definition
	if err := decode(r, &d); err != nil {
		respondError(w, "", http.StatusBadRequest, "invalid request body", err)
		return
	}
	if d.Name == "" {
		d.Name = name
	}
	if d.Name != name {
		respondError(w, "", http.StatusBadRequest, "workflow name does not match path", nil)
		return
	}

	if err := s.vault.Mutate(workflow.Put(d)); err != nil {
		respondError(w, "", http.StatusUnprocessableEntity, "workflow rejected", err)
		return
	}
	_, rev := s.vault.Current()
	s.opts.Logger.Info("workflow stored", "workflow", name, "revision", rev)
	respondJSON(w, rev, http.StatusOK, map[string]any{"revision": rev})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	g, rev := s.vault.Current()
	if _, ok := g.Workflow(name); !ok {
		respondError(w, rev, http.StatusNotFound, "workflow not found", errors.Wrapf(workflow.ErrUnknownWorkflow, "%q", name))
		return
	}

	if err := s.vault.Mutate(workflow.Delete(name)); err != nil {
		respondError(w, rev, http.StatusConflict, "workflow is still referenced", err)
		return
	}
	_, rev = s.vault.Current()
	s.opts.Logger.Info("workflow deleted", "workflow", name, "revision", rev)
	w.Header().Set(RevisionHeader, rev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) entry(name string) string {
	if name == "" {
		return s.opts.Entry
	}
	return name
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusOf maps evaluation errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, workflow.ErrUnknownWorkflow),
		errors.Is(err, workflow.ErrEmptyDomain),
		errors.Is(err, workflow.ErrDomainTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrDidNotTerminate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, rev string, status int, data any) {
	if rev != "" {
		w.Header().Set(RevisionHeader, rev)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, rev string, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, rev, status, response)
}
