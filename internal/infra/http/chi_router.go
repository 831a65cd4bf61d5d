package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// chiRouter implements Router on top of chi.
type chiRouter struct {
	mux chi.Router
}

var _ Router = (*chiRouter)(nil)

// NewChiRouter creates a Router backed by chi with path normalisation and
// real client IP resolution enabled.
func NewChiRouter() Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)
	return &chiRouter{mux: r}
}

func (r *chiRouter) GET(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Get(path, wrap(handler, middlewares))
}

func (r *chiRouter) POST(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Post(path, wrap(handler, middlewares))
}

func (r *chiRouter) PUT(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Put(path, wrap(handler, middlewares))
}

func (r *chiRouter) PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Patch(path, wrap(handler, middlewares))
}

func (r *chiRouter) DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Delete(path, wrap(handler, middlewares))
}

func (r *chiRouter) Group(prefix string, fn func(Router), middlewares ...Middleware) {
	r.mux.Route(prefix, func(cr chi.Router) {
		for _, mw := range middlewares {
			cr.Use(mw)
		}
		fn(&chiRouter{mux: cr})
	})
}

func (r *chiRouter) Use(middlewares ...Middleware) {
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

func (r *chiRouter) With(middlewares ...Middleware) Router {
	chained := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, mw := range middlewares {
		chained[i] = mw
	}
	return &chiRouter{mux: r.mux.With(chained...)}
}

func (r *chiRouter) Handler() http.Handler {
	return r.mux
}

func (r *chiRouter) Walk(fn func(method, path string, handler http.Handler) error) error {
	return chi.Walk(r.mux, func(method, route string, handler http.Handler, _ ...func(http.Handler) http.Handler) error {
		// chi registers a catch-all for mounted sub-routers
		if route == "/*" {
			return nil
		}
		return fn(method, route, handler)
	})
}

func wrap(h http.HandlerFunc, middlewares []Middleware) http.HandlerFunc {
	if len(middlewares) == 0 {
		return h
	}
	return Chain(h, middlewares...).ServeHTTP
}
