package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteLanding = "/"
	RouteLogin   = "/login"
	RouteSignup  = "/signup"
	RouteTodos   = "/todos"
	RouteLogout  = "/logout"

	RouteValidatePassword = "/signup/validate-password"

	// Task actions (HTML forms)
	RouteTodoToggle = "/todos/{id}/toggle"
	RouteTodoDelete = "/todos/{id}/delete"

	// API Routes
	RouteAPITodos = "/api/todos"
	RouteAPITodo  = "/api/todos/{id}"
	RouteHealth   = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
