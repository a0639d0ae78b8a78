// Package signal contains the server wiring for the presence and
// call-signaling relay.
package signal

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"relay/broker"
	"relay/database/memory"
	"relay/metric"
	"relay/signal/controller"
	"relay/signal/handler"
	"relay/signal/middleware"
	"relay/signal/rest"
	"relay/signal/router"
)

// Signal contains the server and configuration.
type Signal struct {
	server *http.Server
	conf   Config
}

// New creates a new instance of Signal.
func New(config Config, metrics *metric.Metrics) (*Signal, error) {
	mux, err := NewHandler(config, metrics)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           mux,
	}
	return &Signal{
		server: srv,
		conf:   config,
	}, nil
}

// NewHandler wires the relay components and returns the root handler. It is
// split from New so tests can serve the same mux from a test server.
func NewHandler(config Config, metrics *metric.Metrics) (http.Handler, error) {
	brk := broker.New()
	db := memory.New()
	rtr := router.New(router.Config{}, brk, db, metrics)
	con := controller.New(rtr, brk, metrics, config.Debug)

	api, err := rest.New(db, config.UploadDir)
	if err != nil {
		return nil, err
	}
	apiMux := http.NewServeMux()
	api.Register(apiMux)
	wrapped := middleware.Set(apiMux, middleware.NewCORS(), middleware.NewLogger())

	mux := http.NewServeMux()
	mux.Handle("/ws", handler.New(con))
	mux.Handle("/api/", wrapped)
	mux.Handle("/uploads/", wrapped)
	return mux, nil
}

// Start runs the signal server.
func (s *Signal) Start() error {
	if s.conf.CertFile == "" || s.conf.KeyFile == "" {
		log.Printf("Starting server port on %d, without TLS", s.conf.Port)
		if err := s.server.ListenAndServe(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	}

	log.Printf("Starting server port on %d, with TLS", s.conf.Port)
	if err := s.server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
