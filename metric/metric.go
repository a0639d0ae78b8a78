// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// systemMetricsInterval is how often system-level gauges are refreshed.
const systemMetricsInterval = 5 * time.Second

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer           *http.Server
	config               Config
	webSocketConnections prometheus.Gauge
	onlineUsers          prometheus.Gauge
	activeCalls          prometheus.Gauge
	routedEvents         *prometheus.CounterVec
	droppedEvents        *prometheus.CounterVec
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		webSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of WebSocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "online_users_total",
			Help: "Current number of users marked online.",
		}),
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "call_sessions_total",
			Help: "Current number of ringing or active call sessions.",
		}),
		routedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routed_events_total",
			Help: "Total number of events forwarded to a target connection.",
		}, []string{"event"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropped_events_total",
			Help: "Total number of events dropped instead of forwarded.",
		}, []string{"reason"}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
	}
}

// RegisterMetrics registers custom metrics with Prometheus.
func (m *Metrics) RegisterMetrics() {
	prometheus.MustRegister(m.webSocketConnections)
	prometheus.MustRegister(m.onlineUsers)
	prometheus.MustRegister(m.activeCalls)
	prometheus.MustRegister(m.routedEvents)
	prometheus.MustRegister(m.droppedEvents)
	prometheus.MustRegister(m.cpuUsage)
	prometheus.MustRegister(m.memoryUsage)
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.Handler())
	m.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.config.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Starting metrics server on port %d at path %s", m.config.Port, m.config.Path)
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.httpServer != nil {
		log.Printf("Stopping metrics server on port %d", m.config.Port)
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics collects and updates system-level metrics until the stop
// channel is closed.
func (m *Metrics) UpdateSystemMetrics(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
					m.cpuUsage.Set(percents[0])
				}
				if vm, err := mem.VirtualMemory(); err == nil {
					m.memoryUsage.Set(float64(vm.Used))
				}
			}
		}
	}()
}

// IncrementWebSocketConnections increments the WebSocket connection count.
func (m *Metrics) IncrementWebSocketConnections() {
	m.webSocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the WebSocket connection count.
func (m *Metrics) DecrementWebSocketConnections() {
	m.webSocketConnections.Dec()
}

// IncrementOnlineUsers increments the online user count.
func (m *Metrics) IncrementOnlineUsers() {
	m.onlineUsers.Inc()
}

// DecrementOnlineUsers decrements the online user count.
func (m *Metrics) DecrementOnlineUsers() {
	m.onlineUsers.Dec()
}

// IncrementActiveCalls increments the live call session count.
func (m *Metrics) IncrementActiveCalls() {
	m.activeCalls.Inc()
}

// DecrementActiveCalls decrements the live call session count.
func (m *Metrics) DecrementActiveCalls() {
	m.activeCalls.Dec()
}

// CountRoutedEvent counts one forwarded event by kind.
func (m *Metrics) CountRoutedEvent(event string) {
	m.routedEvents.WithLabelValues(event).Inc()
}

// CountDroppedEvent counts one dropped event by reason.
func (m *Metrics) CountDroppedEvent(reason string) {
	m.droppedEvents.WithLabelValues(reason).Inc()
}
