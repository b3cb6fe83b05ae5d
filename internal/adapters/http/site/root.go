// Package site serves the embedded chart dashboard.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Error constants
var (
	ErrServe = errors.New("dashboard serve failed")
)

// Prefix is the path the dashboard is mounted under.
const Prefix = "/dashboard/"

// Register attaches the dashboard routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle(Prefix, http.StripPrefix(Prefix, http.FileServer(FS())))
	mux.Handle("/dashboard", http.RedirectHandler(Prefix, http.StatusMovedPermanently))
}
