package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mindpal/mindpal-backend/internal/services"
	"github.com/mindpal/mindpal-backend/internal/ssedata"
)

// FlushSSE drains request-scoped SSE messages once the handler has finished,
// so clients only see events for work that actually committed.
func FlushSSE(publishers ...services.SSEPublisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ssd := ssedata.GetSSEData(c.Request.Context())
		if ssd == nil {
			return
		}
		msgs := ssd.Drain()
		if len(msgs) == 0 {
			return
		}
		ctx := c.Request.Context()
		for _, msg := range msgs {
			for _, pub := range publishers {
				pub.Publish(ctx, msg)
			}
		}
	}
}
