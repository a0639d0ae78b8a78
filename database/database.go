// Package database provides an interface for database operations.
package database

import (
	"errors"
)

var (
	// ErrUserAlreadyExists is returned when the username is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserNotFound is returned when the user is not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrBindingNotFound is returned when the connection binding is not found.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrSessionAlreadyExists is returned when a live session for the pair already exists.
	ErrSessionAlreadyExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when the session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionState is returned when a session transition is applied
	// from a state the transition does not allow.
	ErrInvalidSessionState = errors.New("invalid session state")
)

// Database is an interface for database operations.
type Database interface {
	CreateUserInfo(username string) (*UserInfo, error)
	FindUserInfoByUsername(username string) (*UserInfo, error)
	FindAllUserInfo() ([]*UserInfo, error)
	SetUserOnline(username, connRef string) (*UserInfo, error)
	SetUserOffline(username string) (*UserInfo, error)

	CreateBindingInfo(connRef, username string) (*BindingInfo, error)
	FindBindingInfoByRef(connRef string) (*BindingInfo, error)
	DeleteBindingInfoByRef(connRef string) (*BindingInfo, error)

	CreateSessionInfo(caller, callee, callerConn, calleeConn string) (*SessionInfo, error)
	FindSessionInfoByID(id string) (*SessionInfo, error)
	FindSessionInfoByParticipant(username string) ([]*SessionInfo, error)
	UpdateSessionInfoState(id string, from []int, to int) (*SessionInfo, error)
	DeleteSessionInfoByID(id string) error
}
