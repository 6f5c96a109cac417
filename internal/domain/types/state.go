package types

// Membership is the membership state of a user in a room.
type Membership string

const (
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipInvite Membership = "invite"
	MembershipBan    Membership = "ban"
	MembershipKnock  Membership = "knock"
)

// Member is the cached membership profile of one user in one room.
type Member struct {
	Membership  Membership `json:"membership"`
	Displayname string     `json:"displayname,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// EncryptionEventContent is the content of an m.room.encryption state
// event, cached so the bridge knows which rooms need encrypted payloads.
type EncryptionEventContent struct {
	Algorithm              KeyAlgorithm `json:"algorithm"`
	RotationPeriodMillis   int64        `json:"rotation_period_ms,omitempty"`
	RotationPeriodMessages int          `json:"rotation_period_msgs,omitempty"`
}

// PowerLevels is the subset of m.room.power_levels the bridge consults.
type PowerLevels struct {
	Users         map[UserID]int    `json:"users,omitempty"`
	UsersDefault  int               `json:"users_default,omitempty"`
	Events        map[EventType]int `json:"events,omitempty"`
	EventsDefault int               `json:"events_default,omitempty"`
	StateDefault  int               `json:"state_default,omitempty"`
}

// GetUserLevel returns the effective power level of a user.
func (pl *PowerLevels) GetUserLevel(user UserID) int {
	if lvl, ok := pl.Users[user]; ok {
		return lvl
	}
	return pl.UsersDefault
}
