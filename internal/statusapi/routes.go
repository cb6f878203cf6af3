// Package statusapi is a thin, read-mostly HTTP status surface: health
// check, a point-in-time progress snapshot, and a websocket stream of
// attack-lifecycle events. It exposes no control-plane endpoints — nothing
// here can start, stop, or reorder an attack.
package statusapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/gravelpit/pkg/models"
)

// StateSource is the read-only view of the Batch State Machine this
// package depends on, kept as a local interface (rather than importing
// internal/state directly) so handlers can be tested against a fake
// document without a real Store or its file-backed persistence.
type StateSource interface {
	Snapshot() models.StateDocument
}

type handler struct {
	state StateSource
	hub   *Hub
}

// SetupRouter builds the gin.Engine exposing /healthz, /status, and /ws.
// allowedOrigins is a comma-separated CORS allow-list; empty means "*".
func SetupRouter(state StateSource, hub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("GRAVELPIT_ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &handler{state: state, hub: hub}

	r.GET("/healthz", h.handleHealth)

	protected := r.Group("/")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.GET("/status", h.handleStatus)
		protected.GET("/status/:batchId", h.handleBatchStatus)
		protected.GET("/ws", hub.Subscribe)
	}

	return r
}

func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// batchSummary is the JSON projection of one batch's progress — everything
// in models.BatchState except AttackResults and the unexported external-ref
// field, neither of which is surfaced here.
type batchSummary struct {
	HashlistID       string                  `json:"hashlistId"`
	HashCount        int                     `json:"hashCount"`
	Cracked          int                     `json:"cracked"`
	Status           models.BatchStatus      `json:"status"`
	AttacksApplied   []string                `json:"attacksApplied"`
	AttacksRemaining []string                `json:"attacksRemaining"`
	Feedback         *models.FeedbackSummary `json:"feedback,omitempty"`
}

func toSummary(b *models.BatchState) batchSummary {
	return batchSummary{
		HashlistID:       b.HashlistID,
		HashCount:        b.HashCount,
		Cracked:          b.Cracked,
		Status:           b.Status,
		AttacksApplied:   b.AttacksApplied,
		AttacksRemaining: b.AttacksRemaining,
		Feedback:         b.Feedback,
	}
}

func (h *handler) handleStatus(c *gin.Context) {
	doc := h.state.Snapshot()
	out := make(map[string]batchSummary, len(doc.Batches))
	for k, b := range doc.Batches {
		out[k] = toSummary(b)
	}
	c.JSON(http.StatusOK, gin.H{
		"lastUpdated": doc.LastUpdated,
		"startedAt":   doc.StartedAt,
		"batches":     out,
	})
}

func (h *handler) handleBatchStatus(c *gin.Context) {
	batchID := c.Param("batchId")
	doc := h.state.Snapshot()
	b, ok := doc.Batches[batchID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown batch"})
		return
	}
	c.JSON(http.StatusOK, toSummary(b))
}
