// Package migrations implements the persistent migration log: the TOML
// record codec, the graph validator, replace-chain cleaning, dependency
// ordering and schema replay.
package migrations

import (
	"github.com/koba/db-migrate/internal/schema"
)

// Migration is one immutable record of the append-only migration log. The
// ID is derived from the filename (NNNN_<label>) and is not serialized.
type Migration struct {
	ID         string
	Hash       uint64
	Initial    bool
	Dependency string // empty = none
	Replaces   []string
	Operations []Operation
}

// Active reports whether m is still in effect, i.e. whether no record in
// records lists m.ID in its Replaces set.
func (m *Migration) Active(records []*Migration) bool {
	for _, other := range records {
		for _, r := range other.Replaces {
			if r == m.ID {
				return false
			}
		}
	}
	return true
}

// Operation is one schema change carried by a migration. The set of
// implementations is closed: CreateModel, DeleteModel, AddField and
// DeleteField. Consumers switch over the concrete type and treat any other
// value as a programming error.
type Operation interface {
	isOperation()
}

// CreateModel creates a new model with the given fields.
type CreateModel struct {
	Name   string
	Fields []schema.Field
}

// DeleteModel removes a model and everything in it.
type DeleteModel struct {
	Name string
}

// AddField appends a field to an existing model.
type AddField struct {
	Model string
	Field schema.Field
}

// DeleteField removes a field from an existing model by name.
type DeleteField struct {
	Model string
	Field string
}

func (CreateModel) isOperation() {}
func (DeleteModel) isOperation() {}
func (AddField) isOperation()    {}
func (DeleteField) isOperation() {}

// Operation Type strings as persisted in the migration file.
const (
	OpCreateModel = "CreateModel"
	OpDeleteModel = "DeleteModel"
	OpAddField    = "AddField"
	OpDeleteField = "DeleteField"
)
