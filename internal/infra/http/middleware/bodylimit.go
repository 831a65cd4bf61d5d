package middleware

import (
	"net/http"
)

// DefaultMaxBodySize is the default maximum request body size (1MB).
const DefaultMaxBodySize = 1 << 20

// BodyLimit limits the size of request bodies. Handlers see an
// *http.MaxBytesError when decoding a larger body.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasNoBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func hasNoBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
