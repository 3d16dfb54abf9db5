package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RoomsPubSub bridges session-room events across service instances: every
// committed mutation is published here as well as to the local hub, and each
// instance republishes foreign events into its own hub. Origin filtering
// keeps an instance from echoing its own events back into its rooms.
type RoomsPubSub struct {
	rdb     *redis.Client
	channel string
	origin  string
}

func NewRoomsPubSub(rdb *redis.Client, origin string) *RoomsPubSub {
	return &RoomsPubSub{
		rdb:     rdb,
		channel: ChannelRoomEvents(),
		origin:  origin,
	}
}

type roomEventMsg struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
	TsUnix int64        `json:"ts_unix"`
}

func (p *RoomsPubSub) Publish(ctx context.Context, ev domain.Event) error {
	msg := roomEventMsg{
		Origin: p.origin,
		Event:  ev,
		TsUnix: time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks, invoking handler for every event published by another
// instance, until ctx is cancelled.
func (p *RoomsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev domain.Event)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg roomEventMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				msg.Origin != p.origin && msg.Event.RoomKey != "" {
				handler(ctx, msg.Event)
			}
		}
	}
}
