package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/httputil"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		for _, e := range c.Errors[:len(c.Errors)-1] {
			requestLogger(c).Debug().
				Err(e.Err).
				Str("path", c.Request.URL.Path).
				Msg("Request error")
		}

		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
