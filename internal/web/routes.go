package web

import (
	"net/http"

	"rentalagent/internal/metrics"
	"rentalagent/internal/netx"
)

// StartSocket mounts the socket.io handler
func StartSocket(mux *http.ServeMux, server *netx.Socket) {
	mux.Handle("/socket.io/", server.Handler())
}

// StartMetrics mounts the Prometheus endpoint
func StartMetrics(mux *http.ServeMux, m *metrics.Metrics) {
	mux.Handle("/metrics", m.Handler())
}

// StartHealth mounts /healthz reporting the number of streaming clients
func StartHealth(mux *http.ServeMux, d *Dashboard) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			netx.WriteMethodNotAllowed(w)
			return
		}
		netx.WriteSuccess(w, "ok", map[string]int{
			"connected_clients": d.Connected(),
		})
	})
}
