// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/optica-pos/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag; the server clears it when draining.
func SetReady(v bool) { ready.Store(v) }

// Probe pings one dependency.
type Probe func(ctx context.Context) error

// Check is a named dependency probe. A nil Probe means the dependency is not
// configured and is reported as "disabled" without failing readiness.
type Check struct {
	Name    string
	Probe   Probe
	Timeout time.Duration
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Checks)+1)
	healthy := ready.Load()
	if !healthy {
		status["server"] = "draining"
	}
	for _, c := range h.Checks {
		if c.Probe == nil {
			status[c.Name] = "disabled"
			continue
		}
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 500 * time.Millisecond
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := c.Probe(ctx)
		cancel()
		if err != nil {
			status[c.Name] = err.Error()
			healthy = false
			continue
		}
		status[c.Name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}
