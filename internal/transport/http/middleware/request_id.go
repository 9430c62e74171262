package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vyapar-labs/b2b-platform/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request id when it is a well-formed
// UUID and mints a fresh one otherwise, so arbitrary client strings never
// reach the logs. The id rides on the response header and in the request
// context for the access logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID),
		)

		c.Next()
	}
}
