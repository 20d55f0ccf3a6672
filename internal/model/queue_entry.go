package model

import "time"

// EntryStatus is the lifecycle state of a QueueEntry.  Entries only move
// forward: WAITING -> SERVING -> FINISHED, or straight to SERVING when a
// room is free at check-in.
type EntryStatus string

const (
	StatusWaiting  EntryStatus = "WAITING"
	StatusServing  EntryStatus = "SERVING"
	StatusFinished EntryStatus = "FINISHED"
)

// Active reports whether the status still holds a place in line or a room.
func (s EntryStatus) Active() bool {
	return s == StatusWaiting || s == StatusServing
}

// QueueEntry records one check-in of a member.  Entries are never deleted;
// finished entries remain as history for reporting.
//
// Fields:
//  ID          – opaque identifier (UUID) assigned at creation.
//  UserID      – chat platform id of the member.
//  DisplayName – display name captured at check-in.
//  Status      – WAITING, SERVING or FINISHED.
//  QueueNumber – assigned when the entry is placed as WAITING; zero otherwise.
//  RoomNumber  – assigned when the entry becomes SERVING; zero otherwise.
//  CheckInTime – creation timestamp.
//  ServeTime   – when the entry became SERVING (nil until then).
//  FinishTime  – when the entry became FINISHED (nil until then).
type QueueEntry struct {
	ID          string      `json:"id"`                     // queue_entries.id
	UserID      string      `json:"user_id"`                // queue_entries.user_id
	DisplayName string      `json:"display_name"`           // queue_entries.display_name
	Status      EntryStatus `json:"status"`                 // queue_entries.status
	QueueNumber int64       `json:"queue_number,omitempty"` // queue_entries.queue_number (nullable)
	RoomNumber  int         `json:"room_number,omitempty"`  // queue_entries.room_number (nullable)
	CheckInTime time.Time   `json:"check_in_time"`          // queue_entries.check_in_time
	ServeTime   *time.Time  `json:"serve_time,omitempty"`   // queue_entries.serve_time (nullable)
	FinishTime  *time.Time  `json:"finish_time,omitempty"`  // queue_entries.finish_time (nullable)
}
