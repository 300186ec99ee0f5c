package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"flipradar/internal/engine"
	"flipradar/internal/notify"
)

// StreamHandler pushes newly created opportunities to websocket clients.
// Updates and retractions are not streamed; clients poll the REST API for
// lifecycle changes.
type StreamHandler struct {
	Feed   *notify.Feed
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stream", h.stream)
}

type streamMessage struct {
	Kind        string `json:"kind"`
	Opportunity any    `json:"opportunity"`
	Category    string `json:"category,omitempty"`
}

func (h *StreamHandler) stream(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "feed unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin enforcement is the proxy's job
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	events, cancel := h.Feed.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != engine.EventCreated {
				continue
			}
			msg := streamMessage{
				Kind:        string(ev.Kind),
				Opportunity: ev.Opportunity,
				Category:    ev.Category,
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}
