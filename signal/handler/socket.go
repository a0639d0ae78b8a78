// Package handler upgrades HTTP requests to websocket connections.
package handler

import (
	"log"
	"net/http"

	"github.com/lithammer/shortuuid/v4"

	"relay/pkg/socket"
	"relay/signal/controller"
)

// Handler upgrades requests and hands the socket to the controller.
type Handler struct {
	controller *controller.Controller
}

// New creates a new Handler.
func New(c *controller.Controller) *Handler {
	return &Handler{
		controller: c,
	}
}

// ServeHTTP handles the HTTP request and upgrades it to a websocket
// connection. Each connection gets a fresh reference that identifies it for
// routing and cleanup.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := socket.New(w, r)
	if err != nil {
		log.Printf("failed to upgrade connection: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Println("error occurs in closing connection")
		}
	}()

	connRef := shortuuid.New()
	if err := h.controller.Process(conn, connRef); err != nil {
		log.Printf("error occurs in connection %s: %v", connRef, err)
	}
}
