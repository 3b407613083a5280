package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-todo-server/authform"
	"github.com/jrsteele09/go-todo-server/identity"
	"github.com/jrsteele09/go-todo-server/internal/config"
	"github.com/jrsteele09/go-todo-server/server/clientrepo"
	"github.com/jrsteele09/go-todo-server/session"
	"github.com/jrsteele09/go-todo-server/tasklist"
	"github.com/jrsteele09/go-todo-server/todos"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	sessions *session.Store
	store    todos.Store
	clients  clientrepo.Repo
	nowTime  func() time.Time
}

type Option func(*Server)

// WithClientRepo replaces the in-memory per-browser state repository
func WithClientRepo(repo clientrepo.Repo) Option {
	return func(s *Server) {
		s.clients = repo
	}
}

// New builds the HTTP server. The session store should already be started so
// provider sign outs reach the browser state kept here.
func New(config config.Config, sessions *session.Store, store todos.Store, options ...Option) (*Server, error) {
	if sessions == nil || store == nil {
		return nil, fmt.Errorf("[Server New] session store and todo store are required")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		sessions: sessions,
		store:    store,
		clients:  clientrepo.NewInMemoryRepo(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	events, _ := sessions.Subscribe()
	go s.discardOnSignOut(events)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// client returns the state kept for the request's browser session
func (s *Server) client(r *http.Request) (*clientrepo.ClientState, error) {
	return s.clients.GetOrCreate(sessionIDFrom(r.Context()), func() *clientrepo.ClientState {
		return &clientrepo.ClientState{
			Tasks:     tasklist.NewController(s.store, log.Logger),
			Login:     authform.NewLogin(),
			Signup:    authform.NewSignup(),
			CreatedAt: s.nowTime(),
		}
	})
}

// discardOnSignOut drops the browser state of every session that signs out,
// whether from the logout route or from the identity provider.
func (s *Server) discardOnSignOut(events <-chan identity.Event) {
	for e := range events {
		if e.Kind != identity.SignedOut {
			continue
		}
		if err := s.clients.Delete(e.SessionID); err != nil {
			log.Err(err).Str("session", e.SessionID).Msg("Failed to discard client state")
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(level zerolog.Level, method, path, error string) {
	log.WithLevel(level).Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
