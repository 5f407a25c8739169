package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"transcriber/internal/logging"
)

// Route names.
const (
	Home          = "home"
	Login         = "login"
	Transcription = "transcription"
)

// ErrUnknownRoute is returned when navigating to a name that is not registered.
var ErrUnknownRoute = errors.New("unknown route")

// Route is a named view. Path segments starting with ':' are parameters.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// DefaultRoutes is the client route table.
func DefaultRoutes() []Route {
	return []Route{
		{Name: Home, Path: "/", RequiresAuth: true},
		{Name: Login, Path: "/login"},
		{Name: Transcription, Path: "/transcription/:id", RequiresAuth: true},
	}
}

// AuthChecker reports whether a user is signed in.
type AuthChecker interface {
	IsAuthenticated() bool
}

// Decision is the guard outcome for a navigation attempt.
type Decision struct {
	Route      Route
	Params     map[string]string
	Redirected bool
}

// Router tracks the current route and enforces the auth guard.
type Router struct {
	logger *slog.Logger
	routes map[string]Route
	order  []string

	mu      sync.Mutex
	auth    AuthChecker
	current string
	history []string
}

// New builds a router over routes. Routes with duplicate names keep the last
// definition.
func New(routes []Route, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Router{
		logger: logging.NewComponentLogger(logger, "router"),
		routes: make(map[string]Route, len(routes)),
	}
	for _, route := range routes {
		if _, exists := r.routes[route.Name]; !exists {
			r.order = append(r.order, route.Name)
		}
		r.routes[route.Name] = route
	}
	return r
}

// Bind attaches the auth checker consulted by the guard. Until bound every
// protected route redirects to login.
func (r *Router) Bind(auth AuthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth = auth
}

// Lookup returns the named route.
func (r *Router) Lookup(name string) (Route, bool) {
	route, ok := r.routes[name]
	return route, ok
}

// Resolve applies the guard to name without changing the current route.
func (r *Router) Resolve(name string) (Decision, error) {
	route, ok := r.routes[name]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	r.mu.Lock()
	auth := r.auth
	r.mu.Unlock()
	if route.RequiresAuth && (auth == nil || !auth.IsAuthenticated()) {
		login, ok := r.routes[Login]
		if !ok {
			return Decision{}, fmt.Errorf("%w: %s", ErrUnknownRoute, Login)
		}
		return Decision{Route: login, Redirected: true}, nil
	}
	return Decision{Route: route}, nil
}

// Navigate moves to name, or to login when the guard rejects it.
func (r *Router) Navigate(name string) error {
	decision, err := r.Resolve(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.current = decision.Route.Name
	r.history = append(r.history, decision.Route.Name)
	r.mu.Unlock()

	if decision.Redirected {
		r.logger.Info("redirected to login",
			logging.String("requested", name),
			logging.Route(decision.Route.Name),
		)
		return nil
	}
	r.logger.Debug("navigated", logging.Route(decision.Route.Name))
	return nil
}

// Current returns the current route name, empty before the first navigation.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns every route entered, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Match finds the route whose path pattern matches path and extracts its
// parameters.
func (r *Router) Match(path string) (Route, map[string]string, bool) {
	segments := splitPath(path)
	for _, name := range r.order {
		route := r.routes[name]
		pattern := splitPath(route.Path)
		if len(pattern) != len(segments) {
			continue
		}
		params := map[string]string{}
		matched := true
		for i, part := range pattern {
			if strings.HasPrefix(part, ":") {
				if segments[i] == "" {
					matched = false
					break
				}
				params[strings.TrimPrefix(part, ":")] = segments[i]
				continue
			}
			if part != segments[i] {
				matched = false
				break
			}
		}
		if matched {
			return route, params, true
		}
	}
	return Route{}, nil, false
}

// PathFor renders the path of name with params substituted.
func (r *Router) PathFor(name string, params map[string]string) (string, error) {
	route, ok := r.routes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	parts := splitPath(route.Path)
	for i, part := range parts {
		if !strings.HasPrefix(part, ":") {
			continue
		}
		key := strings.TrimPrefix(part, ":")
		value, ok := params[key]
		if !ok || value == "" {
			return "", fmt.Errorf("route %s: missing parameter %q", name, key)
		}
		parts[i] = value
	}
	return "/" + strings.Join(parts, "/"), nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}
