package model

import "time"

// Member is a chat user who has registered with the service.  Only
// registered members may check in.
//
// Fields:
//  UserID       – chat platform id, primary key.
//  DisplayName  – profile name at registration time.
//  PictureURL   – profile picture, may be empty.
//  RegisteredAt – registration timestamp.
type Member struct {
	UserID       string    `json:"user_id"`               // members.user_id
	DisplayName  string    `json:"display_name"`          // members.display_name
	PictureURL   string    `json:"picture_url,omitempty"` // members.picture_url
	RegisteredAt time.Time `json:"registered_at"`         // members.registered_at
}
