package database

import "time"

// BindingInfo maps a live connection reference back to the username that
// logged in over it. It is a back-reference only, used to resolve who just
// disconnected.
type BindingInfo struct {
	ConnRef   string
	Username  string
	CreatedAt time.Time
}

// DeepCopy creates a deep copy of the given BindingInfo.
func (b *BindingInfo) DeepCopy() *BindingInfo {
	return &BindingInfo{
		ConnRef:   b.ConnRef,
		Username:  b.Username,
		CreatedAt: b.CreatedAt,
	}
}
