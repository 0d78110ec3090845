// Package devserver is an in-memory stand-in for the tess backend: the
// directory, the session ledger and the conversation provisioner, served
// on the same paths the client calls.
package devserver

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/naveenspark/tess/pkg/domain"
)

// TokenTTL is the lifetime of every token the server issues.
const TokenTTL = 8 * time.Hour

// Demo principals.
const (
	DemoStaffEmail    = "demo@school.edu"
	DemoStaffPassword = "demo123"
	ScanTokenPrefix   = "student_qr_"
)

var demoStudent = domain.Student{
	ID:      "550e8400-e29b-41d4-a716-446655440000",
	Name:    "Alex Johnson",
	Grade:   3,
	ClassID: "class-456",
}

var demoEducator = domain.Educator{
	ID:       "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	Name:     "Ms. Sarah Wilson",
	Email:    DemoStaffEmail,
	ClassIDs: []string{"class-456", "class-789"},
}

// Options configure a Server. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	// APIKey, when set, must arrive in the apikey header of every request.
	APIKey string
	// RequireAuth makes the session ledger demand a bearer token issued by
	// this server.
	RequireAuth bool
	// SigningKey signs issued tokens. Defaults to a fixed development key.
	SigningKey []byte
	// CallBaseURL prefixes every provisioned conversation_url.
	CallBaseURL string
	// HashCost is the bcrypt cost for the demo staff password.
	HashCost int
}

// Server holds the in-memory tables.
type Server struct {
	log         *slog.Logger
	now         func() time.Time
	apiKey      string
	requireAuth bool
	key         []byte
	callBase    string
	staffHash   []byte

	mu            sync.Mutex
	sessions      []domain.CheckInSession
	conversations map[string]bool // id -> active
}

// New builds a server with the demo principals seeded.
func New(opts Options) (*Server, error) {
	s := &Server{
		log:           opts.Logger,
		now:           opts.Now,
		apiKey:        opts.APIKey,
		requireAuth:   opts.RequireAuth,
		key:           opts.SigningKey,
		callBase:      strings.TrimRight(opts.CallBaseURL, "/"),
		conversations: map[string]bool{},
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.key) == 0 {
		s.key = []byte("tess-devserver-signing-key")
	}
	if s.callBase == "" {
		s.callBase = "https://tavus.daily.co"
	}
	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoStaffPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("devserver.New: hash demo password: %w", err)
	}
	s.staffHash = hash
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.apiKeyMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/functions/v1", func(r chi.Router) {
		r.Post("/authenticate-qr", s.authenticateScan)
		r.Post("/authenticate-staff", s.authenticateStaff)
		r.Post("/create-conversation", s.createConversation)
		r.Post("/end-conversation", s.endConversation)
	})
	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(s.bearerMiddleware)
		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.createSession)
		r.Patch("/sessions/{id}", s.updateSession)
	})
	return r
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.URL.Path != "/healthz" && r.Header.Get("apikey") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.ErrorContext(r.Context(), "panic recovered", "method", r.Method, "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
