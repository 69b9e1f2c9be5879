package main

import (
	"net/http"
)

// DataLoaderMiddleware injects fresh dataloaders into every request context
// so cached rows never outlive the request.
func DataLoaderMiddleware(st *store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(st))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
