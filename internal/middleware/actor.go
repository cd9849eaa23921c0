package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindpal/mindpal-backend/internal/logger"
	"github.com/mindpal/mindpal-backend/internal/requestdata"
	"github.com/mindpal/mindpal-backend/internal/ssedata"
)

const actorHeader = "X-Actor-ID"

// ActorMiddleware binds the gateway-verified actor id into the request
// context. Token verification happens at the gateway; by the time a request
// reaches this service the header is trusted.
type ActorMiddleware struct {
	log *logger.Logger
}

func NewActorMiddleware(log *logger.Logger) *ActorMiddleware {
	return &ActorMiddleware{log: log.With("middleware", "ActorMiddleware")}
}

func (am *ActorMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(actorHeader)
		if raw == "" {
			raw = c.Query("actor_id")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor id"})
			return
		}
		actorID, err := uuid.Parse(raw)
		if err != nil || actorID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid actor id"})
			return
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{ActorID: actorID})
		ctx = ssedata.WithSSEData(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
