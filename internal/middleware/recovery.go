package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// Recovery turns a handler panic into a 500 envelope. gin's own panic output
// is discarded; the stack goes to the structured log instead.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		requestLogger(c).Error().
			Interface("panic", recovered).
			Bytes("stack", debug.Stack()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")

		httputil.RespondWithMessage(c, http.StatusInternalServerError, "internal server error")
	})
}
