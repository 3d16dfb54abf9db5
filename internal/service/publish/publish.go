// Package publish is the single commit/publish boundary for room events:
// local hub fan-out, the cross-instance redis bridge and the latest-snapshot
// cache all happen here, in that order, so a committed mutation is emitted
// exactly once.
package publish

import (
	"context"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	"github.com/kirinyoku/mesa-go/internal/room"
)

type Publisher struct {
	hub         *room.Hub
	pubsub      *redisrepo.RoomsPubSub
	cache       *redisrepo.Cache
	snapshotTTL time.Duration
}

func New(
	hub *room.Hub,
	pubsub *redisrepo.RoomsPubSub,
	cache *redisrepo.Cache,
	snapshotTTL time.Duration,
) *Publisher {
	if snapshotTTL <= 0 {
		snapshotTTL = 6 * time.Hour
	}
	return &Publisher{
		hub:         hub,
		pubsub:      pubsub,
		cache:       cache,
		snapshotTTL: snapshotTTL,
	}
}

func (p *Publisher) Hub() *room.Hub { return p.hub }

// Event fans one event out to the local room and, when configured, to the
// other instances. Delivery failures are per-viewer and never bubble up to
// the mutation that committed.
func (p *Publisher) Event(ctx context.Context, ev domain.Event) {
	p.hub.Publish(ev.RoomKey, ev)
	if p.pubsub != nil {
		_ = p.pubsub.Publish(ctx, ev)
	}
}

// Snapshot publishes a full-snapshot event and refreshes the cached copy
// used by snapshot re-fetches from other instances.
func (p *Publisher) Snapshot(ctx context.Context, snap domain.Snapshot) {
	if p.cache != nil {
		_ = redisrepo.SetJSON(ctx, p.cache, redisrepo.KeyRoomSnapshot(snap.RoomKey), snap, p.snapshotTTL)
	}
	p.Event(ctx, domain.Event{
		Type:     domain.EventSnapshot,
		RoomKey:  snap.RoomKey,
		Seq:      snap.Seq,
		Snapshot: &snap,
		At:       time.Now(),
	})
}

// Delta publishes one incremental event and keeps the cached snapshot in
// step so late joiners on any instance start from the newest state.
func (p *Publisher) Delta(ctx context.Context, ev domain.Event, snap domain.Snapshot) {
	if p.cache != nil {
		_ = redisrepo.SetJSON(ctx, p.cache, redisrepo.KeyRoomSnapshot(snap.RoomKey), snap, p.snapshotTTL)
	}
	p.Event(ctx, ev)
}

// Forget drops the cached snapshot of an archived room so cross-instance
// reads stop resurrecting it.
func (p *Publisher) Forget(ctx context.Context, roomKey string) {
	if p.cache != nil {
		_ = p.cache.InvalidateRoom(ctx, roomKey)
	}
}
