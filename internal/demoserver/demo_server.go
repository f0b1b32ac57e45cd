// Package demoserver is an in-memory stand-in for the policy backend. It
// serves the same routes and status codes so the client can be exercised
// locally and in tests without the real service.
package demoserver

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raysh454/policyctl/internal/logging"
	"github.com/raysh454/policyctl/internal/policy"
)

// DemoServer serves /health, /policies, /policies/{id} and /policies.csv.
type DemoServer struct {
	cfg    Config
	store  *memStore
	router chi.Router
	logger logging.Logger
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.Nop{}
	}
	s := &DemoServer{
		cfg:    cfg,
		store:  newMemStore(),
		router: chi.NewRouter(),
		logger: logger.With(logging.Field{Key: "component", Value: "demoserver"}),
	}
	if cfg.Seed {
		for _, p := range seedPolicies {
			_, _ = s.store.insert(p)
		}
	}
	s.routes()
	return s
}

func (s *DemoServer) routes() {
	r := s.router
	r.Use(s.requestID)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireKey)
		r.Get("/policies", s.handleList)
		r.Post("/policies", s.handleCreate)
		r.Delete("/policies/{id}", s.handleDelete)
		r.Get("/policies.csv", s.handleExport)
	})
}

// ServeHTTP implements http.Handler.
func (s *DemoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *DemoServer) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *DemoServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.logger.Info("http_request",
			logging.Field{Key: "request_id", Value: id},
			logging.Field{Key: "method", Value: r.Method},
			logging.Field{Key: "path", Value: r.URL.Path})
		next.ServeHTTP(w, r)
	})
}

func (s *DemoServer) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if scheme, v, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "ApiKey") {
				key = strings.TrimSpace(v)
			}
		}
		if key != s.cfg.APIKey {
			writeDetail(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// --- HTTP handlers ---

func (s *DemoServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *DemoServer) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := strings.ToLower(q.Get("sort"))
	dir := strings.ToLower(q.Get("dir"))
	items := s.store.query(q.Get("q"), sortBy, dir)
	total := len(items)

	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 0 && offset+limit < total {
		end = offset + limit
	}
	page := items[offset:end]

	w.Header().Set(policy.HeaderTotalCount, strconv.Itoa(total))
	if len(page) > 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("policies %d-%d/%d", offset, end-1, total))
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("policies */%d", total))
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *DemoServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body policy.NewPolicy
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if msg := validate(body); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}

	row, err := s.store.insert(body)
	if errors.Is(err, errDuplicateNumber) {
		writeDetail(w, http.StatusConflict, "Policy number already exists")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("created policy", logging.Field{Key: "id", Value: row.ID})
	writeJSON(w, http.StatusCreated, row)
}

func (s *DemoServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "id must be an integer")
		return
	}
	if err := s.store.delete(id); err != nil {
		writeDetail(w, http.StatusNotFound, "Policy not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *DemoServer) handleExport(w http.ResponseWriter, r *http.Request) {
	items := s.store.query(r.URL.Query().Get("q"), "id", "desc")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="policies.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "number", "holder", "premium", "status"})
	for _, p := range items {
		_ = cw.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.Number,
			p.Holder,
			strconv.FormatFloat(p.Premium, 'f', -1, 64),
			p.Status,
		})
	}
	cw.Flush()
}

func validate(p policy.NewPolicy) string {
	var missing []string
	if strings.TrimSpace(p.Number) == "" {
		missing = append(missing, "number")
	}
	if strings.TrimSpace(p.Holder) == "" {
		missing = append(missing, "holder")
	}
	if strings.TrimSpace(p.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return "missing required field(s): " + strings.Join(missing, ", ")
	}
	if p.Premium < 0 {
		return "premium must be non-negative"
	}
	return ""
}
