package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with the given status code
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Status: StatusSuccess, Data: data})
}

// RespondWithMessage sends an error envelope with an explicit status code
func RespondWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Status: StatusError, Message: message})
}

// RespondWithError maps err to its HTTP status. Only the AppError message is
// rendered; wrapped causes stay in the logs.
func RespondWithError(c *gin.Context, err error) {
	status, message := Describe(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	RespondWithMessage(c, status, message)
}

// Describe returns the status code and caller-facing message for err.
func Describe(err error) (int, string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode(), appErr.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
