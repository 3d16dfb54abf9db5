package httpgin

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/room"
	"github.com/kirinyoku/mesa-go/internal/service"
)

const heartbeatInterval = 15 * time.Second

// @Summary  Join a session room and stream its events (SSE)
// @Param    key     path   string  true   "Room key"
// @Param    viewer  query  string  false  "customer | kitchen | staff"
// @Param    area    query  string  false  "Kitchen area (kitchen viewers)"
// @Success  200  {object}  domain.Event
// @Router   /rooms/{key}/events [get]
func handleRoomEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomKey := c.Param("key")
		kind := room.ViewerKind(c.DefaultQuery("viewer", string(room.ViewerCustomer)))
		area := domain.KitchenArea(c.Query("area"))

		switch kind {
		case room.ViewerCustomer, room.ViewerKitchen, room.ViewerStaff:
		default:
			badRequest(c, "invalid viewer kind")
			return
		}

		// the first frame on the stream is always the full snapshot, so a
		// reconnecting viewer never has to rebuild state from deltas
		h, _, err := svcs.Query.Join(c.Request.Context(), roomKey, kind, area)
		if err != nil {
			respondErr(c, err)
			return
		}
		defer svcs.Query.Leave(roomKey, h)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case ev, ok := <-h.Events():
				if !ok {
					return false
				}
				c.SSEvent(string(ev.Type), ev)

				// dropped events mean the delta stream has a gap: resend a
				// full snapshot rather than let the viewer apply onto a
				// stale baseline
				if h.Lagged() {
					if snap, err := svcs.Query.Snapshot(ctx, roomKey); err == nil {
						c.SSEvent(string(domain.EventSnapshot), domain.Event{
							Type:     domain.EventSnapshot,
							RoomKey:  roomKey,
							Seq:      snap.Seq,
							Snapshot: &snap,
							At:       time.Now(),
						})
					}
				}
				return true
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
	}
}
