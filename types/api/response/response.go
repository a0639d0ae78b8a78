// Package response provides data types for api responses.
package response

// Register is returned on successful registration.
type Register struct {
	Success  bool   `json:"success"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Error is returned on any api failure.
type Error struct {
	Error string `json:"error"`
}

// UserEntry is one row of the user listing.
type UserEntry struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Upload is returned after a successful file upload. Path is the reference
// clients relay through send-file.
type Upload struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}
