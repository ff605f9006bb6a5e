package httptransport

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthHandler reports liveness and process resource usage.
type HealthHandler struct {
	started time.Time
	proc    *process.Process
}

func NewHealthHandler(started time.Time) *HealthHandler {
	h := &HealthHandler{started: started}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		h.proc = p
	}
	return h
}

func (h *HealthHandler) RegisterRoutes(router *Router) {
	router.API.GET("/health", h.Handle)
}

type healthStatus struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes,omitempty"`
	CPUPercent float64 `json:"cpu_percent,omitempty"`
}

// Handle reports liveness.
// @Summary Health check
// @Tags Observability
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health [get]
func (h *HealthHandler) Handle(c *gin.Context) {
	status := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	if h.proc != nil {
		if mem, err := h.proc.MemoryInfoWithContext(c.Request.Context()); err == nil {
			status.RSSBytes = mem.RSS
		}
		if cpu, err := h.proc.CPUPercentWithContext(c.Request.Context()); err == nil {
			status.CPUPercent = cpu
		}
	}
	RespondSuccess(c, http.StatusOK, status, "")
}
