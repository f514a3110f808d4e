// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/sustainable-computing-io/anepower/internal/monitor"
	"github.com/sustainable-computing-io/anepower/internal/service"
)

type probe struct {
	api          APIService
	powerMonitor monitor.PowerDataProvider
}

var (
	_ service.Service     = (*probe)(nil)
	_ service.Initializer = (*probe)(nil)
)

type probeResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	// ANE is "present" or "absent" once detection has completed
	ANE string `json:"ane,omitempty"`
}

// NewProbe creates a new probe service that provides health check endpoints
func NewProbe(api APIService, powerMonitor monitor.PowerDataProvider) *probe {
	return &probe{
		api:          api,
		powerMonitor: powerMonitor,
	}
}

func (p *probe) Name() string {
	return "probe"
}

func (p *probe) Init() error {
	return p.api.Register("/probe/", "probe", "Health check endpoints", p.handlers())
}

func (p *probe) handlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/probe/readyz", p.readyzHandler)
	mux.HandleFunc("/probe/livez", p.livezHandler)
	return mux
}

// readyzHandler returns 200 once ANE detection has completed. A machine
// without an ANE is ready; it reports zero power.
func (p *probe) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := p.powerMonitor.Snapshot()
	if err != nil {
		respond(w, http.StatusServiceUnavailable, probeResponse{
			Status: "not ready",
			Reason: "monitor service not operational",
		})
		return
	}

	ane := "absent"
	if snapshot.Present {
		ane = "present"
	}
	respond(w, http.StatusOK, probeResponse{Status: "ok", ANE: ane})
}

// livezHandler returns 200 while the monitor can produce snapshots
func (p *probe) livezHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := p.powerMonitor.Snapshot(); err != nil {
		respond(w, http.StatusServiceUnavailable, probeResponse{
			Status: "not alive",
			Reason: "monitor service not operational",
		})
		return
	}

	respond(w, http.StatusOK, probeResponse{Status: "alive"})
}

func respond(w http.ResponseWriter, code int, body probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
