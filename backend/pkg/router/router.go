// Package router wraps chi with documented, validated route registration.
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"greenhouse-monitor/backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// ParameterIn is where a request parameter is carried.
type ParameterIn string

const (
	ParameterInPath   ParameterIn = "path"
	ParameterInQuery  ParameterIn = "query"
	ParameterInHeader ParameterIn = "header"
)

// ParameterSpec documents one request parameter.
type ParameterSpec struct {
	In          ParameterIn
	Description string
	Required    bool
}

// RouteSpec describes a route. Every field but Parameters is required.
type RouteSpec struct {
	OperationID string
	Summary     string
	Description string
	Group       string
	Parameters  map[string]ParameterSpec
	Handler     http.HandlerFunc

	method   string
	fullPath string
}

// RouteInfo summarises a registered route for listing endpoints.
type RouteInfo struct {
	OperationID string `json:"operationID"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Summary     string `json:"summary"`
	Group       string `json:"group"`
}

type registry struct {
	mu     sync.Mutex
	ids    map[string]struct{}
	routes []RouteInfo
}

// RouteBuilder registers documented routes on a chi router.
type RouteBuilder struct {
	l        *slog.Logger
	router   chi.Router
	prefix   string
	registry *registry
}

// NewRouteBuilder creates a builder backed by a new chi router.
func NewRouteBuilder(l *slog.Logger) *RouteBuilder {
	return &RouteBuilder{
		l:        l.With(slog.String("component", "route-builder")),
		router:   chi.NewRouter(),
		registry: &registry{ids: make(map[string]struct{})},
	}
}

// Use appends middlewares to the current router.
func (rb *RouteBuilder) Use(middlewares ...func(http.Handler) http.Handler) {
	rb.router.Use(middlewares...)
}

// Route mounts a sub-router under pattern.
func (rb *RouteBuilder) Route(pattern string, fn func(rb *RouteBuilder)) {
	rb.router.Route(pattern, func(r chi.Router) {
		fn(&RouteBuilder{
			l:        rb.l,
			router:   r,
			prefix:   path.Join(rb.prefix, pattern),
			registry: rb.registry,
		})
	})
}

// Group creates an inline group sharing the prefix, for group-local middlewares.
func (rb *RouteBuilder) Group(fn func(rb *RouteBuilder)) {
	rb.router.Group(func(r chi.Router) {
		fn(&RouteBuilder{
			l:        rb.l,
			router:   r,
			prefix:   rb.prefix,
			registry: rb.registry,
		})
	})
}

// Handle mounts an undocumented handler such as a metrics or websocket endpoint.
func (rb *RouteBuilder) Handle(pattern string, h http.Handler) {
	rb.router.Handle(pattern, h)
}

// Register validates spec and mounts it for method and p.
func (rb *RouteBuilder) Register(method, p string, spec RouteSpec) error {
	spec.method = method
	spec.fullPath = path.Join("/", rb.prefix, p)

	if err := validateRouteSpec(spec); err != nil {
		return fmt.Errorf("invalid route %s %s: %w", method, spec.fullPath, err)
	}

	if err := validateParameters(spec); err != nil {
		return err
	}

	rb.registry.mu.Lock()
	defer rb.registry.mu.Unlock()

	if _, exists := rb.registry.ids[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	rb.registry.ids[spec.OperationID] = struct{}{}
	rb.registry.routes = append(rb.registry.routes, RouteInfo{
		OperationID: spec.OperationID,
		Method:      method,
		Path:        spec.fullPath,
		Summary:     spec.Summary,
		Group:       spec.Group,
	})

	rb.router.Method(method, p, spec.Handler)

	rb.l.Debug("Registered route", slog.String("method", method), slog.String("path", spec.fullPath), slog.String("operationID", spec.OperationID))

	return nil
}

func (rb *RouteBuilder) mustRegister(method, p string, spec RouteSpec) {
	if err := rb.Register(method, p, spec); err != nil {
		rb.l.Error("Failed to register route", slog.String("method", method), slog.String("path", p), utils.ErrAttr(err))
		os.Exit(1)
	}
}

func (rb *RouteBuilder) MustGet(p string, spec RouteSpec)    { rb.mustRegister(http.MethodGet, p, spec) }
func (rb *RouteBuilder) MustPost(p string, spec RouteSpec)   { rb.mustRegister(http.MethodPost, p, spec) }
func (rb *RouteBuilder) MustPut(p string, spec RouteSpec)    { rb.mustRegister(http.MethodPut, p, spec) }
func (rb *RouteBuilder) MustDelete(p string, spec RouteSpec) { rb.mustRegister(http.MethodDelete, p, spec) }

// Routes lists the documented routes sorted by path and method.
func (rb *RouteBuilder) Routes() []RouteInfo {
	rb.registry.mu.Lock()
	defer rb.registry.mu.Unlock()

	routes := append([]RouteInfo(nil), rb.registry.routes...)
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}

		return routes[i].Method < routes[j].Method
	})

	return routes
}

// Handler returns the root handler.
func (rb *RouteBuilder) Handler() http.Handler {
	return rb.router
}

// pathParams returns the {name} parameters of a chi pattern, ignoring regexp suffixes.
func pathParams(p string) []string {
	var names []string

	for segment := range strings.SplitSeq(p, "/") {
		if !strings.HasPrefix(segment, "{") || !strings.HasSuffix(segment, "}") {
			continue
		}

		name, _, _ := strings.Cut(segment[1:len(segment)-1], ":")
		names = append(names, name)
	}

	return names
}
