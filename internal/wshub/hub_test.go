package wshub

import (
	"encoding/json"
	"testing"
	"time"

	"raceroom/internal/sim"
)

func testClient(id string) *Client {
	return &Client{ConnID: id, Send: make(chan []byte, 16)}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("client %s did not receive a message", c.ConnID)
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Send:
		t.Fatalf("client %s received an unexpected message", c.ConnID)
	default:
	}
}

func TestPublishReachesRoomOnly(t *testing.T) {
	h := NewHub()
	c1 := testClient("c1")
	c2 := testClient("c2")
	c3 := testClient("c3")
	h.Attach(c1, "r1")
	h.Attach(c2, "r1")
	h.Attach(c3, "r2")

	h.Publish("r1", sim.PlayerEvent{Type: sim.EventReadyUpdate, PlayerID: "alice", IsReady: true})

	for _, c := range []*Client{c1, c2} {
		var got sim.PlayerEvent
		if err := json.Unmarshal(recv(t, c), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != sim.EventReadyUpdate || got.PlayerID != "alice" || !got.IsReady {
			t.Fatalf("unexpected event: %+v", got)
		}
	}
	assertSilent(t, c3)
}

func TestSubscriberCountAndDetach(t *testing.T) {
	h := NewHub()
	c1 := testClient("c1")
	c2 := testClient("c2")
	h.Attach(c1, "r1")
	h.Attach(c2, "r1")

	if got := h.SubscriberCount("r1"); got != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", got)
	}
	h.Detach(c1)
	if got := h.SubscriberCount("r1"); got != 1 {
		t.Fatalf("SubscriberCount after detach = %d, want 1", got)
	}
	if _, ok := <-c1.Send; ok {
		t.Fatal("detached client's Send channel not closed")
	}

	// Moving to another room leaves the first.
	h.Attach(c2, "r2")
	if got := h.SubscriberCount("r1"); got != 0 {
		t.Fatalf("SubscriberCount after move = %d, want 0", got)
	}
	if got := h.SubscriberCount("r2"); got != 1 {
		t.Fatalf("SubscriberCount in new room = %d, want 1", got)
	}
}

func TestConnHooksRouteDirectReplies(t *testing.T) {
	h := NewHub()
	c1 := testClient("c1")
	c2 := testClient("c2")
	h.Attach(c1, "r1")
	h.Attach(c2, "r1")

	hooks := h.ConnHooks(c1)
	hooks.SendToSender(sim.SyncResponse{Type: sim.EventSyncResponse, Rate: 2})

	var got sim.SyncResponse
	if err := json.Unmarshal(recv(t, c1), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != sim.EventSyncResponse || got.Rate != 2 {
		t.Fatalf("unexpected reply: %+v", got)
	}
	assertSilent(t, c2)
}

func TestPublishDropsWhenClientFull(t *testing.T) {
	h := NewHub()
	c := &Client{ConnID: "slow", Send: make(chan []byte, 1)}
	h.Attach(c, "r1")

	h.Publish("r1", sim.ClockEvent{Type: sim.EventClockUpdate, Rate: 1})
	h.Publish("r1", sim.ClockEvent{Type: sim.EventClockUpdate, Rate: 2})

	// The first message fit; the second was dropped rather than blocking.
	recv(t, c)
	assertSilent(t, c)
}

func TestRoomDeletedDropsObserverSet(t *testing.T) {
	h := NewHub()
	c := testClient("c1")
	h.Attach(c, "r1")

	h.RoomDeleted("r1")
	if got := h.SubscriberCount("r1"); got != 0 {
		t.Fatalf("SubscriberCount after delete = %d, want 0", got)
	}
}

func TestPlayerFinishedForwardsToSink(t *testing.T) {
	h := NewHub()
	var gotRoom string
	var gotDifficulty sim.Difficulty
	var gotPlayer *sim.Player
	h.OnFinish = func(roomID string, difficulty sim.Difficulty, p *sim.Player) {
		gotRoom = roomID
		gotDifficulty = difficulty
		gotPlayer = p
	}

	ft := 42.0
	h.PlayerFinished("r1", sim.DifficultyHard, &sim.Player{ID: "alice", FinishTime: &ft})
	if gotRoom != "r1" || gotDifficulty != sim.DifficultyHard || gotPlayer == nil || gotPlayer.ID != "alice" {
		t.Fatalf("sink got (%q, %q, %+v), want (r1, hard, alice)", gotRoom, gotDifficulty, gotPlayer)
	}
}
