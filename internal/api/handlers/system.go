package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextPinger is a dependency checked with a deadline.
type ContextPinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a context-free check such as the NATS connection status.
type PingFunc func() error

func (f PingFunc) Ping(context.Context) error { return f() }

type SystemHandler struct {
	checks map[string]ContextPinger
}

// NewSystemHandler reports readiness from the named checks. Nil checks are
// skipped.
func NewSystemHandler(checks map[string]ContextPinger) *SystemHandler {
	h := &SystemHandler{checks: make(map[string]ContextPinger, len(checks))}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
