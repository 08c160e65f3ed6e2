// Package web is a live SSE dashboard over a decode session: it tails an
// events.Hub and streams each FieldRecord to every connected browser as a
// Datastar patch, compressing responses the way a production HTTP server
// would.
package web

import (
	"log"
	"net/http"

	"github.com/CAFxX/httpcompression"
)

// Server wires the dashboard's handlers onto a mux and wraps the whole
// thing in response compression.
type Server struct {
	dashboard *Dashboard
	handler   http.Handler
}

// NewServer builds a Server over dashboard, the way huskki's server.go
// wires UI handlers into a ServeMux, but adds CAFxX/httpcompression's
// adapter around the result — the SSE stream and the index page both
// benefit from compression on anything but a loopback link.
func NewServer(dashboard *Dashboard) (*Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", dashboard.IndexHandler)
	mux.HandleFunc("/events", dashboard.EventsHandler)

	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	return &Server{dashboard: dashboard, handler: compress(mux)}, nil
}

// Start listens on addr, blocking until the server exits.
func (s *Server) Start(addr string) error {
	log.Printf("listening on %s …", addr)
	return http.ListenAndServe(addr, s.handler)
}
