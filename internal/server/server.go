// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/howard-nolan/coachgate/internal/gateway"
	"github.com/howard-nolan/coachgate/internal/persona"
)

// Server holds the HTTP router and all dependencies the handlers need: the
// gateway facade, the active character, and the canned taunt book used
// when no backend is reachable.
type Server struct {
	router  chi.Router
	gw      *gateway.Gateway
	profile *persona.Profile
	book    *persona.Book // may be nil — canned fallback disabled
	log     zerolog.Logger
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler.
func New(gw *gateway.Gateway, profile *persona.Profile, book *persona.Book, log zerolog.Logger) *Server {
	s := &Server{gw: gw, profile: profile, book: book, log: log}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions —
// gathered in one method so the routing table is easy to scan.
func (s *Server) routes() {
	r := chi.NewRouter()

	// middleware.Logger prints a line per request (method, path, status,
	// duration); middleware.Recoverer turns handler panics into 500s
	// instead of crashing the process.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/v1/narrate", s.handleNarrate)
	r.Get("/v1/narrate/ws", s.handleNarrateWS)
	r.Post("/v1/remark", s.handleRemark)
	r.Get("/v1/character", s.handleCharacter)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface; every request
// just delegates to chi's router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
