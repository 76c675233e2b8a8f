// Package handler wires HTTP endpoints to the relay core.
package handler

import "net/http"

// ServeRoot serves the static chat client.
func ServeRoot(staticDir string) http.Handler {
	return http.FileServer(http.Dir(staticDir))
}
