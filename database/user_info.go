package database

import "time"

// UserInfo is a struct for registered user information. Records are created on
// registration and never deleted; only the presence fields change afterwards.
type UserInfo struct {
	ID        string
	Username  string
	Online    bool
	ConnRef   string
	CreatedAt time.Time
}

// SetOnline marks the user online and pins the live connection reference.
func (u *UserInfo) SetOnline(connRef string) {
	u.Online = true
	u.ConnRef = connRef
}

// SetOffline clears the presence fields.
func (u *UserInfo) SetOffline() {
	u.Online = false
	u.ConnRef = ""
}

// IsReachable returns whether the user currently has a live connection.
func (u *UserInfo) IsReachable() bool {
	return u.Online && u.ConnRef != ""
}

// DeepCopy creates a deep copy of the given UserInfo.
func (u *UserInfo) DeepCopy() *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Online:    u.Online,
		ConnRef:   u.ConnRef,
		CreatedAt: u.CreatedAt,
	}
}
