package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"poap-og-server/internal/domain/preview"
)

// PreviewHandler serves card images.
type PreviewHandler struct {
	orchestrator *preview.Orchestrator
	maxPostBytes int64
}

func NewPreviewHandler(orchestrator *preview.Orchestrator, maxPostBytes int64) *PreviewHandler {
	if maxPostBytes <= 0 {
		maxPostBytes = preview.DefaultMaxPostBytes
	}
	return &PreviewHandler{orchestrator: orchestrator, maxPostBytes: maxPostBytes}
}

func (h *PreviewHandler) RegisterRoutes(router *Router) {
	router.API.Any("/poap/v/:address", h.Handle)
	router.API.Any("/poap/v", h.Handle)
}

// Handle renders or redirects to the card for an address.
// @Summary Address preview card
// @Description GET renders from the badge API. POST renders caller-supplied badges and requires poapapikey.
// @Tags Preview
// @Accept json
// @Produce png
// @Param address path string false "wallet address"
// @Param address query string false "wallet address when not in the path"
// @Success 200 {file} binary "1200x630 PNG"
// @Success 302 "cached CDN copy"
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 405 {object} APIResponse
// @Failure 413 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /poap/v/{address} [get]
// @Router /poap/v/{address} [post]
func (h *PreviewHandler) Handle(c *gin.Context) {
	req := preview.Request{
		Method:    c.Request.Method,
		Addresses: addressValues(c),
	}
	if c.Request.Method == http.MethodPost {
		req.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPostBytes)
	}
	h.orchestrator.Handle(c.Request.Context(), req, ginResponder{c: c})
}

func addressValues(c *gin.Context) []string {
	var values []string
	if p := c.Param("address"); p != "" {
		values = append(values, p)
	}
	return append(values, c.QueryArray("address")...)
}

type ginResponder struct {
	c *gin.Context
}

func (r ginResponder) Redirect(url string) {
	r.c.Redirect(http.StatusFound, url)
}

func (r ginResponder) Image(png []byte) error {
	r.c.Header("Cache-Control", preview.CacheControl)
	r.c.Data(http.StatusOK, preview.ContentType, png)
	return nil
}

func (r ginResponder) Fail(err error) {
	RespondErr(r.c, err)
}
