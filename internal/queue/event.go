// Package queue defines message payloads exchanged over the message broker
// and the consumer that drains them.
package queue

// DefaultRoomAssignedQueue is the durable queue room assignments are
// published to.
const DefaultRoomAssignedQueue = "room.assigned"

// RoomAssignedEvent is published after a waiting member has been promoted
// into a room.  It carries everything the chat gateway needs to push the
// "your room is ready" message without querying the primary database.
type RoomAssignedEvent struct {
	EntryID     string `json:"entry_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	RoomNumber  int    `json:"room_number"`
	QueueNumber int64  `json:"queue_number"`
	AssignedAt  string `json:"assigned_at"` // RFC3339, UTC
}
