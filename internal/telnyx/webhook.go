package telnyx

import (
	"net/http"

	"call-router/internal/ivr"
	"call-router/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookEnvelope is the Telnyx webhook wrapper: {"data": {"event_type", "payload"}}.
type WebhookEnvelope struct {
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
}

// WebhookHandler converts webhook deliveries to internal events and delegates
// to the routing core. No business logic here.
//
// It always acknowledges with HTTP 200, even on internal error: a non-2xx
// response would make the provider re-deliver and multiply side effects.
type WebhookHandler struct {
	Router *ivr.Router
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook handler panicked", "panic", rec)
			c.JSON(http.StatusOK, ivr.Ack{Status: ivr.StatusError})
		}
	}()

	// Parse leniently: an unreadable body is acknowledged as an empty event.
	var env WebhookEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		log.Warn("webhook body unparseable", "err", err)
	}

	ack := h.Router.HandleEvent(c.Request.Context(), ivr.Event{
		Type:    env.Data.EventType,
		Payload: env.Data.Payload,
	})
	c.JSON(http.StatusOK, ack)
}
