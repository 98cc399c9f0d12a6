package sim

// Hooks is the boundary between the room simulation and whatever transport
// carries its events. The core calls these fire-and-forget: implementations
// must never block the simulation on client delivery.
type Hooks interface {
	// BroadcastRoomState emits a full room snapshot to all observers.
	BroadcastRoomState(snap RoomSnapshot)
	// Publish emits a typed event to all observers of a room.
	Publish(roomID string, msg any)
	// SendToSender emits a typed event only to the originator of the
	// message currently being handled. No-op outside message handling.
	SendToSender(msg any)
	// SubscriberCount reports how many observers hold a live connection
	// to a room.
	SubscriberCount(roomID string) int
	// SubscribeToRoom registers the current connection as an observer.
	// Transports with implicit fan-out may treat this as a no-op.
	SubscribeToRoom(roomID string)
	// RoomDeleted is notified when the core evicts a room.
	RoomDeleted(roomID string)
	// ShouldDeletePlayer lets the transport veto the hard removal of a
	// long-disconnected player.
	ShouldDeletePlayer(roomID, playerID string) bool
	// PlayerFinished is told when a player's finish time is first
	// recorded, for best-effort result snapshotting. Called under the
	// room lock; implementations must not call back into the registry.
	PlayerFinished(roomID string, difficulty Difficulty, p *Player)
}

// senderHooks overlays a direct-reply route onto base hooks for the duration
// of one message dispatch.
type senderHooks struct {
	Hooks
	send func(msg any)
}

func (s senderHooks) SendToSender(msg any) { s.send(msg) }

// WithSender returns hooks whose SendToSender delivers through send. Used by
// transports to scope direct replies to the connection a message came from.
func WithSender(h Hooks, send func(msg any)) Hooks {
	return senderHooks{Hooks: h, send: send}
}

// NopHooks discards everything; useful in tests and as an embedding base for
// partial implementations.
type NopHooks struct{}

func (NopHooks) BroadcastRoomState(RoomSnapshot)            {}
func (NopHooks) Publish(string, any)                        {}
func (NopHooks) SendToSender(any)                           {}
func (NopHooks) SubscriberCount(string) int                 { return 0 }
func (NopHooks) SubscribeToRoom(string)                     {}
func (NopHooks) RoomDeleted(string)                         {}
func (NopHooks) ShouldDeletePlayer(string, string) bool     { return true }
func (NopHooks) PlayerFinished(string, Difficulty, *Player) {}
