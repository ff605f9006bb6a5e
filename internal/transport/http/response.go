package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	platformerrors "poap-og-server/internal/platform/errors"
)

// APIResponse is the JSON envelope for every non-image response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.AbortWithStatusJSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondErr maps a typed error to its status. Server-side failures hide the cause.
func RespondErr(c *gin.Context, err error) {
	status := platformerrors.HTTPStatus(err)
	_ = c.Error(err)
	if status >= 500 {
		RespondError(c, status, "Failed to generate image", nil)
		return
	}
	message := err.Error()
	var typed *platformerrors.Error
	if errors.As(err, &typed) {
		message = typed.Message
	}
	RespondError(c, status, message, nil)
}
