package room

import (
	"testing"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

func event(seq uint64) domain.Event {
	return domain.Event{Type: domain.EventItemStatus, RoomKey: "table:7", Seq: seq}
}

func TestPublishPreservesOrder(t *testing.T) {
	h := NewHub(16)
	v := h.Join("table:7", ViewerCustomer, "")
	defer h.Leave("table:7", v)

	for seq := uint64(1); seq <= 10; seq++ {
		h.Publish("table:7", event(seq))
	}

	for want := uint64(1); want <= 10; want++ {
		ev := <-v.Events()
		if ev.Seq != want {
			t.Fatalf("received seq %d, want %d", ev.Seq, want)
		}
	}
}

func TestPublishReachesAllViewers(t *testing.T) {
	h := NewHub(4)
	customer := h.Join("table:7", ViewerCustomer, "")
	station := h.Join("table:7", ViewerKitchen, "hot")
	staff := h.Join("table:7", ViewerStaff, "")

	h.Publish("table:7", event(1))

	for _, v := range []*Handle{customer, station, staff} {
		ev := <-v.Events()
		if ev.Seq != 1 {
			t.Fatalf("viewer %s got seq %d", v.Kind, ev.Seq)
		}
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	h := NewHub(4)
	a := h.Join("table:1", ViewerCustomer, "")
	b := h.Join("table:2", ViewerCustomer, "")

	h.Publish("table:1", event(1))

	if ev := <-a.Events(); ev.Seq != 1 {
		t.Fatalf("table:1 viewer got seq %d", ev.Seq)
	}
	select {
	case ev := <-b.Events():
		t.Fatalf("table:2 viewer got leaked event seq %d", ev.Seq)
	default:
	}
}

// A viewer that stops draining never blocks the publisher; it gets flagged
// lagged and its neighbors keep receiving.
func TestSlowViewerLagsWithoutBlocking(t *testing.T) {
	h := NewHub(2)
	slow := h.Join("table:7", ViewerCustomer, "")
	fast := h.Join("table:7", ViewerStaff, "")

	for seq := uint64(1); seq <= 5; seq++ {
		h.Publish("table:7", event(seq))
	}

	if !slow.Lagged() {
		t.Error("slow viewer not flagged lagged after overflow")
	}
	if slow.Lagged() {
		t.Error("Lagged must clear the flag on read")
	}

	for want := uint64(1); want <= 5; want++ {
		ev := <-fast.Events()
		if ev.Seq != want {
			t.Fatalf("fast viewer got seq %d, want %d", ev.Seq, want)
		}
	}
	if fast.Lagged() {
		t.Error("fast viewer wrongly flagged lagged")
	}
}

// A join racing the previous viewer's final leave must land in the live
// room, never in one the leave just collected.
func TestJoinDuringFinalLeaveStaysReachable(t *testing.T) {
	h := NewHub(4)
	for i := uint64(0); i < 500; i++ {
		a := h.Join("table:7", ViewerCustomer, "")
		done := make(chan struct{})
		go func() {
			h.Leave("table:7", a)
			close(done)
		}()
		b := h.Join("table:7", ViewerStaff, "")
		<-done

		h.Publish("table:7", event(i))
		select {
		case ev := <-b.Events():
			if ev.Seq != i {
				t.Fatalf("iteration %d: got seq %d", i, ev.Seq)
			}
		default:
			t.Fatalf("iteration %d: joined viewer missed a publish", i)
		}
		h.Leave("table:7", b)
	}
	if h.Rooms() != 0 {
		t.Errorf("Rooms = %d after final leave, want 0", h.Rooms())
	}
}

func TestLeaveClosesAndCollectsRoom(t *testing.T) {
	h := NewHub(4)
	a := h.Join("table:7", ViewerCustomer, "")
	b := h.Join("table:7", ViewerStaff, "")

	h.Leave("table:7", a)
	if _, open := <-a.Events(); open {
		t.Error("channel still open after Leave")
	}
	if h.Viewers("table:7") != 1 {
		t.Errorf("Viewers = %d, want 1", h.Viewers("table:7"))
	}

	// publishing after a leave must not panic on the closed channel
	h.Publish("table:7", event(1))

	h.Leave("table:7", b)
	if h.Rooms() != 0 {
		t.Errorf("Rooms = %d after last leave, want 0", h.Rooms())
	}

	// double leave is a no-op
	h.Leave("table:7", b)
}
