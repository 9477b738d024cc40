package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on a gin group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouteInfo describes one mounted endpoint
type RouteInfo struct {
	Method string
	Path   string
	Group  string
	// Versioned routes sit behind the API middleware.
	Versioned bool
}

// Router collects registrars and mounts them in Setup. Versioned registrars
// go under /api/<version> behind the API middleware; root registrars go on
// the engine itself.
type Router struct {
	engine        *gin.Engine
	apiVersion    string
	apiMiddleware []gin.HandlerFunc
	versioned     []RouteRegistrar
	root          []RouteRegistrar
	routes        []RouteInfo
}

type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// WithAPIMiddleware adds middleware to every versioned route
func WithAPIMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.apiMiddleware = append(r.apiMiddleware, middleware...) }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar for the versioned API
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.versioned = append(r.versioned, registrar)
	return r
}

// RegisterRoot queues a registrar mounted outside the versioned API
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// APIPrefix is the mount point of versioned registrars
func (r *Router) APIPrefix() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every queued registrar. The versioned group is only created
// when something was registered on it.
func (r *Router) Setup() {
	root := &r.engine.RouterGroup
	for _, registrar := range r.root {
		registrar.RegisterRoutes(root)
		r.record(registrar, "", false)
	}
	if len(r.versioned) == 0 {
		return
	}
	api := r.engine.Group(r.APIPrefix(), r.apiMiddleware...)
	for _, registrar := range r.versioned {
		registrar.RegisterRoutes(api)
		r.record(registrar, r.APIPrefix(), true)
	}
}

// Routes returns the endpoints mounted by Setup from DomainGroups, in
// registration order.
func (r *Router) Routes() []RouteInfo {
	return r.routes
}

func (r *Router) record(registrar RouteRegistrar, base string, versioned bool) {
	group, ok := registrar.(*DomainGroup)
	if !ok {
		return
	}
	group.walk(base, func(name, method, fullPath string) {
		r.routes = append(r.routes, RouteInfo{Method: method, Path: fullPath, Group: name, Versioned: versioned})
	})
}

// DomainGroup is a named route group with its own middleware and subgroups
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

// Handle registers a route for an arbitrary method
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group returns a new subgroup mounted below this one
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	sub := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, sub)
	return sub
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, sub := range dg.subgroups {
		sub.RegisterRoutes(group)
	}
}

// walk visits every route with its absolute path, the same path gin joins.
func (dg *DomainGroup) walk(base string, visit func(group, method, fullPath string)) {
	prefix := joinPaths(base, dg.prefix)
	for _, route := range dg.routes {
		visit(dg.name, route.method, joinPaths(prefix, route.path))
	}
	for _, sub := range dg.subgroups {
		sub.walk(prefix, visit)
	}
}

func joinPaths(base, rel string) string {
	if rel == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	joined := path.Join("/", base, rel)
	if rel[len(rel)-1] == '/' && joined[len(joined)-1] != '/' {
		joined += "/"
	}
	return joined
}
