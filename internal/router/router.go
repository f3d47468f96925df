package router

import (
	"net/http"
	"slices"
)

// Middleware wraps an http.Handler with cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Router registers method-scoped routes on an http.ServeMux and applies a
// middleware chain to every handler. Go 1.22 mux patterns ("POST /a/{id}")
// do the method dispatch; the router only owns chaining.
type Router struct {
	mux   *http.ServeMux
	chain []Middleware
}

// New creates a Router. The given middleware runs, in order, around every
// route registered on it or on any Group derived from it.
func New(middleware ...Middleware) *Router {
	return &Router{mux: http.NewServeMux(), chain: middleware}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handle registers a handler for the method and pattern, wrapped in the
// router's chain plus any route-specific middleware.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	r.mux.Handle(method+" "+pattern, r.wrap(handler, middleware))
}

func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, middleware...)
}

func (r *Router) Post(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, middleware...)
}

func (r *Router) Patch(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPatch, pattern, handler, middleware...)
}

func (r *Router) Delete(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodDelete, pattern, handler, middleware...)
}

// Group returns a Router sharing the same mux whose routes additionally run
// the given middleware after the parent chain.
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		mux:   r.mux,
		chain: append(slices.Clone(r.chain), middleware...),
	}
}

// wrap nests the handler inside the combined chain. The first middleware in
// the chain is the outermost wrapper, so execution order matches
// registration order.
func (r *Router) wrap(handler http.Handler, extra []Middleware) http.Handler {
	chain := append(slices.Clone(r.chain), extra...)
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return handler
}
