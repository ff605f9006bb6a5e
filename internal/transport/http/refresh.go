package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"poap-og-server/internal/domain/refresh"
	"poap-og-server/internal/platform/logging"
)

// RefreshHandler triggers the warm-up job from a scheduler.
type RefreshHandler struct {
	job    *refresh.Job
	logger *logging.Logger
}

func NewRefreshHandler(job *refresh.Job, logger *logging.Logger) *RefreshHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RefreshHandler{job: job, logger: logger}
}

func (h *RefreshHandler) RegisterRoutes(router *Router) {
	router.API.Any("/cron/refresh", h.Handle)
}

type refreshResponse struct {
	Message   string `json:"message"`
	Addresses int    `json:"addresses"`
}

// Handle runs one warm-up pass.
// @Summary Queue re-renders for recent minters
// @Tags Cron
// @Produce json
// @Param Authorization header string true "Bearer <cron secret>"
// @Success 200 {object} refreshResponse
// @Failure 401 {string} string "Unauthorized"
// @Failure 405 {object} refreshResponse
// @Failure 500 {object} refreshResponse
// @Router /cron/refresh [post]
func (h *RefreshHandler) Handle(c *gin.Context) {
	if !h.job.Authorized(c.GetHeader("Authorization")) {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, refreshResponse{Message: "Method not allowed"})
		return
	}

	res, err := h.job.Run(c.Request.Context())
	if err != nil {
		h.logger.ErrorTag("REFRESH", "warm-up run failed: %v", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, refreshResponse{Message: "Failed to update POAPs"})
		return
	}
	c.JSON(http.StatusOK, refreshResponse{
		Message:   "POAPs updated successfully",
		Addresses: res.Addresses - res.Dropped,
	})
}
