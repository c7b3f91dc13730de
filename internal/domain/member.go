package domain

// Position is the avatar location inside a room.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing string  `json:"facing,omitempty"`
}

type DisplayState string

const (
	DisplayIdle    DisplayState = "idle"
	DisplayFocused DisplayState = "focused"
	DisplayAway    DisplayState = "away"
)

func (s DisplayState) Valid() bool {
	switch s {
	case DisplayIdle, DisplayFocused, DisplayAway:
		return true
	}
	return false
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User         *User
	Position     Position
	DisplayState DisplayState
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user, DisplayState: DisplayIdle}
}
