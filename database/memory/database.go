// Package memory provides an in-memory database implementation.
package memory

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"relay/database"
)

// DB is a memory-backed database.
type DB struct {
	db *memdb.MemDB
}

// New creates a new memory-backed database.
func New() *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	return &DB{
		db: db,
	}
}

// CreateUserInfo registers a new user if the username is not taken. The record
// starts offline; only a later login sets the connection reference.
func (d *DB) CreateUserInfo(username string) (*database.UserInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblUsers, idxUsername, username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserAlreadyExists)
	}

	info := &database.UserInfo{
		ID:        uuid.NewString(),
		Username:  username,
		Online:    false,
		CreatedAt: time.Now(),
	}
	if err := txn.Insert(tblUsers, info); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindUserInfoByUsername finds a user by their username.
func (d *DB) FindUserInfoByUsername(username string) (*database.UserInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblUsers, idxUsername, username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserNotFound)
	}
	return raw.(*database.UserInfo).DeepCopy(), nil
}

// FindAllUserInfo returns a snapshot of every registered user.
func (d *DB) FindAllUserInfo() ([]*database.UserInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tblUsers, idxUsername)
	if err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	var users []*database.UserInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		users = append(users, raw.(*database.UserInfo).DeepCopy())
	}
	return users, nil
}

// SetUserOnline marks the user online and stores the connection reference.
// Calling it twice with the same reference is a no-op.
func (d *DB) SetUserOnline(username, connRef string) (*database.UserInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblUsers, idxUsername, username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserNotFound)
	}
	info := raw.(*database.UserInfo).DeepCopy()
	info.SetOnline(connRef)
	if err := txn.Insert(tblUsers, info); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// SetUserOffline clears the presence fields of the user.
func (d *DB) SetUserOffline(username string) (*database.UserInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblUsers, idxUsername, username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserNotFound)
	}
	info := raw.(*database.UserInfo).DeepCopy()
	info.SetOffline()
	if err := txn.Insert(tblUsers, info); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// CreateBindingInfo records the connection-to-username association. A stale
// association for the same connection reference is overwritten, so a re-login
// cannot leak the old entry.
func (d *DB) CreateBindingInfo(connRef, username string) (*database.BindingInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	info := &database.BindingInfo{
		ConnRef:   connRef,
		Username:  username,
		CreatedAt: time.Now(),
	}
	if err := txn.Insert(tblBindings, info); err != nil {
		return nil, fmt.Errorf("insert binding: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindBindingInfoByRef resolves a connection reference to its binding.
func (d *DB) FindBindingInfoByRef(connRef string) (*database.BindingInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblBindings, idxConnRef, connRef)
	if err != nil {
		return nil, fmt.Errorf("find binding by ref: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", connRef, database.ErrBindingNotFound)
	}
	return raw.(*database.BindingInfo).DeepCopy(), nil
}

// DeleteBindingInfoByRef removes and returns the binding for the connection
// reference. Used by disconnect handling.
func (d *DB) DeleteBindingInfoByRef(connRef string) (*database.BindingInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblBindings, idxConnRef, connRef)
	if err != nil {
		return nil, fmt.Errorf("find binding by ref: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", connRef, database.ErrBindingNotFound)
	}
	if err := txn.Delete(tblBindings, raw); err != nil {
		return nil, fmt.Errorf("delete binding: %w", err)
	}
	txn.Commit()
	return raw.(*database.BindingInfo).DeepCopy(), nil
}

// CreateSessionInfo creates a Ringing session for the unordered pair of
// usernames. A live session for the same pair rejects the creation.
func (d *DB) CreateSessionInfo(caller, callee, callerConn, calleeConn string) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	id := database.SessionID(caller, callee)
	existing, err := txn.First(tblSessions, idxSessionID, id)
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	if existing != nil && existing.(*database.SessionInfo).IsLive() {
		return nil, fmt.Errorf("%s: %w", id, database.ErrSessionAlreadyExists)
	}

	info := &database.SessionInfo{
		ID:         id,
		Caller:     caller,
		Callee:     callee,
		CallerConn: callerConn,
		CalleeConn: calleeConn,
		State:      database.Ringing,
		CreatedAt:  time.Now(),
	}
	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindSessionInfoByID finds a session by its pair key.
func (d *DB) FindSessionInfoByID(id string) (*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblSessions, idxSessionID, id)
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrSessionNotFound)
	}
	return raw.(*database.SessionInfo).DeepCopy(), nil
}

// FindSessionInfoByParticipant returns every session the user is a party to,
// as caller or as callee.
func (d *DB) FindSessionInfoByParticipant(username string) ([]*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	var sessions []*database.SessionInfo
	for _, idx := range []string{idxSessionCaller, idxSessionCallee} {
		it, err := txn.Get(tblSessions, idx, username)
		if err != nil {
			return nil, fmt.Errorf("iterate sessions: %w", err)
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			sessions = append(sessions, raw.(*database.SessionInfo).DeepCopy())
		}
	}
	return sessions, nil
}

// UpdateSessionInfoState transitions a session to the given state, but only
// when its current state is one of the expected prior states. Racing events
// therefore cannot apply a transition out of order.
func (d *DB) UpdateSessionInfoState(id string, from []int, to int) (*database.SessionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblSessions, idxSessionID, id)
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrSessionNotFound)
	}
	info := raw.(*database.SessionInfo).DeepCopy()
	if !slices.Contains(from, info.State) {
		return nil, fmt.Errorf("%s is %s, want %s: %w",
			id, database.StateName(info.State), database.StateNames(from), database.ErrInvalidSessionState)
	}
	info.State = to
	if to == database.Active {
		info.AnsweredAt = time.Now()
	}
	if err := txn.Insert(tblSessions, info); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// DeleteSessionInfoByID removes a session record.
func (d *DB) DeleteSessionInfoByID(id string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblSessions, idxSessionID, id)
	if err != nil {
		return fmt.Errorf("find session by id: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", id, database.ErrSessionNotFound)
	}
	if err := txn.Delete(tblSessions, raw); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	txn.Commit()
	return nil
}
