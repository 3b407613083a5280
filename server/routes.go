package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

func (s *Server) initRoutes() {
	// Unauthenticated only
	s.RegisterRouteHandler("GET "+RouteLanding+"{$}", ChainMiddleware(s.LandingHandler(), s.HTMLMiddleWare(s.RequireUnauthenticated())...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare(s.RequireUnauthenticated())...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.RequireUnauthenticated())...))
	s.RegisterRouteHandler("GET "+RouteSignup, ChainMiddleware(s.SignupPageHandler(), s.HTMLMiddleWare(s.RequireUnauthenticated())...))
	s.RegisterRouteHandler("POST "+RouteSignup, ChainMiddleware(s.SignupSubmissionHandler(), s.HTMLMiddleWare(s.RequireUnauthenticated())...))
	s.RegisterRouteHandler("POST "+RouteValidatePassword, ChainMiddleware(s.ValidatePasswordHandler(), s.HTMLMiddleWare()...))

	// Authenticated only
	s.RegisterRouteHandler("GET "+RouteTodos, ChainMiddleware(s.TodosPageHandler(), s.HTMLMiddleWare(s.RequireAuthenticated())...))
	s.RegisterRouteHandler("POST "+RouteTodos, ChainMiddleware(s.CreateTodoHandler(), s.HTMLMiddleWare(s.RequireAuthenticated())...))
	s.RegisterRouteHandler("POST "+RouteTodoToggle, ChainMiddleware(s.ToggleTodoHandler(), s.HTMLMiddleWare(s.RequireAuthenticated())...))
	s.RegisterRouteHandler("POST "+RouteTodoDelete, ChainMiddleware(s.DeleteTodoHandler(), s.HTMLMiddleWare(s.RequireAuthenticated())...))

	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// JSON API
	s.RegisterRouteHandler("GET "+RouteAPITodos, ChainMiddleware(s.APIListTodos(), s.APIMiddleware(s.RequireAPIAuth())...))
	s.RegisterRouteHandler("POST "+RouteAPITodos, ChainMiddleware(s.APICreateTodo(), s.APIMiddleware(s.RequireAPIAuth())...))
	s.RegisterRouteHandler("PATCH "+RouteAPITodo, ChainMiddleware(s.APIUpdateTodo(), s.APIMiddleware(s.RequireAPIAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteAPITodo, ChainMiddleware(s.APIDeleteTodo(), s.APIMiddleware(s.RequireAPIAuth())...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPITodos, ChainMiddleware(noContent, s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPITodo, ChainMiddleware(noContent, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError(zerolog.WarnLevel, "GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
