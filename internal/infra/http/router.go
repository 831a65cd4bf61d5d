// Package http holds the HTTP server, the router abstraction and the shared
// request helpers for the permission API.
package http

import (
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface handlers and route files are written against.
// The chi implementation lives in chi_router.go.
type Router interface {
	// Route-level middleware runs inside the group and global middleware,
	// first listed outermost:
	//
	//	r.PUT("/preset", h.ApplyPreset, limiter)
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group mounts fn under prefix with the group middleware applied.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds middleware for every route registered afterwards.
	Use(middlewares ...Middleware)

	// With returns a router that applies the middleware to its routes only.
	With(middlewares ...Middleware) Router

	Handler() http.Handler

	// Walk visits every registered route.
	Walk(fn func(method, path string, handler http.Handler) error) error
}

// Chain applies middlewares to a handler, first listed outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
