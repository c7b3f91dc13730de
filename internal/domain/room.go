package domain

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
)

type RoomID string

// Room is a read-only view of one capacity-bounded room.
// CurrentSize counts reserved and joined occupants alike.
type Room struct {
	ID          RoomID `json:"id"`
	Capacity    int    `json:"capacity"`
	CurrentSize int    `json:"current_size"`
}

func (r Room) HasSpace() bool { return r.CurrentSize < r.Capacity }
