package controllers

import (
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ctx"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/sse"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/ws"
)

const sseKeepalive = 25 * time.Second

// RealtimeController exposes the fanout hub over websocket and SSE. Both
// transports carry the same {type, data} frames.
type RealtimeController struct {
	hub *ws.Hub
}

func NewRealtimeController(hub *ws.Hub) *RealtimeController {
	return &RealtimeController{hub: hub}
}

func (rc *RealtimeController) Socket(c *ctx.Context) {
	rc.hub.Upgrade(c.W, c.R)
}

func (rc *RealtimeController) Stream(c *ctx.Context) {
	stream := sse.New(c.W, c.R)
	if stream == nil {
		return
	}
	sub := rc.hub.Subscribe("sse")
	if sub == nil {
		return
	}
	defer rc.hub.Unsubscribe(sub)
	stream.Pipe(sub.C, sseKeepalive)
}
