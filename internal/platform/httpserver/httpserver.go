// Package httpserver centralizes the http.Server timeouts so every binary
// serves with the same slow-client protection.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for addr. Read-header and idle timeouts are fixed
// here; request deadlines belong to the handlers, which know their own
// budgets.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
