// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblUsers    = "users"
	tblBindings = "bindings"
	tblSessions = "sessions"
)

const (
	idxUsername      = "id"
	idxConnRef       = "id"
	idxSessionID     = "id"
	idxSessionCaller = "caller"
	idxSessionCallee = "callee"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblUsers: {
			Name: tblUsers,
			Indexes: map[string]*memdb.IndexSchema{
				idxUsername: {
					Name:    idxUsername,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Username"},
				},
			},
		},
		tblBindings: {
			Name: tblBindings,
			Indexes: map[string]*memdb.IndexSchema{
				idxConnRef: {
					Name:    idxConnRef,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ConnRef"},
				},
			},
		},
		tblSessions: {
			Name: tblSessions,
			Indexes: map[string]*memdb.IndexSchema{
				idxSessionID: {
					Name:    idxSessionID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				idxSessionCaller: {
					Name:    idxSessionCaller,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Caller"},
				},
				idxSessionCallee: {
					Name:    idxSessionCallee,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Callee"},
				},
			},
		},
	},
}
