// Package httpserver owns http.Server construction so timeouts are set in one
// place.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an http.Server with sane timeouts for an API workload.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
