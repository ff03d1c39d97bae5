// Package generator computes new migration records by diffing a target
// schema snapshot against the baseline implied by the recorded history, and
// renders recorded migrations to SQL for a concrete database dialect.
package generator

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/koba/db-migrate/internal/migrations"
	"github.com/koba/db-migrate/internal/schema"
)

var labelPattern = regexp.MustCompile(`^[\w\d]+$`)

// Result reports the outcome of one generation run.
type Result struct {
	// Created is false when the target matches the recorded history and
	// nothing was written.
	Created   bool
	Path      string
	Migration *migrations.Migration
}

// Generate diffs target against the schema implied by the existing records
// and writes at most one new migration file to dir.
//
// Operation order within the generated record is deterministic: CreateModel
// first, then DeleteModel, then AddField, then DeleteField, each group
// sorted by model name; fields keep their declaration order.
func Generate(dir string, target schema.Snapshot, existing []*migrations.Migration, label string) (*Result, error) {
	if label != "" && !labelPattern.MatchString(label) {
		return nil, &migrations.Error{
			Kind:    migrations.ErrInvalidMigrationName,
			Message: fmt.Sprintf("migration name %q must match %s", label, labelPattern),
		}
	}

	targetHash := target.Hash()

	if len(existing) == 0 {
		return writeInitial(dir, target, targetHash, label)
	}

	ordered, err := migrations.Order(existing)
	if err != nil {
		return nil, err
	}
	last := ordered[len(ordered)-1]

	// Compare against the hash stored on the last record. Recomputing from
	// the baseline would mask a tampered or corrupted history.
	if last.Hash == targetHash {
		return &Result{Created: false}, nil
	}

	baseline := migrations.Replay(ordered)
	ops := diff(baseline, target)
	if len(ops) == 0 {
		return &Result{Created: false}, nil
	}

	if label == "" {
		label = "placeholder"
	}
	sequence := numericID(last.ID) + 1

	m := &migrations.Migration{
		ID:         fmt.Sprintf("%04d_%s", sequence, label),
		Hash:       targetHash,
		Initial:    false,
		Dependency: last.ID,
		Replaces:   []string{},
		Operations: ops,
	}

	// A writer that finished between our read and this write would have
	// bumped the sequence; re-check before committing.
	latest, err := migrations.LatestSequence(dir)
	if err != nil {
		return nil, err
	}
	if latest >= sequence {
		return nil, fmt.Errorf("migration directory changed during generation: sequence %04d already taken", sequence)
	}

	path, err := migrations.WriteFile(dir, m)
	if err != nil {
		return nil, err
	}
	return &Result{Created: true, Path: path, Migration: m}, nil
}

func writeInitial(dir string, target schema.Snapshot, targetHash uint64, label string) (*Result, error) {
	if label == "" {
		label = "initial"
	}

	ops := make([]migrations.Operation, 0, len(target.Models))
	for _, model := range target.Models {
		ops = append(ops, migrations.CreateModel{
			Name:   model.Name,
			Fields: append([]schema.Field(nil), model.Fields...),
		})
	}

	m := &migrations.Migration{
		ID:         "0001_" + label,
		Hash:       targetHash,
		Initial:    true,
		Replaces:   []string{},
		Operations: ops,
	}

	path, err := migrations.WriteFile(dir, m)
	if err != nil {
		return nil, err
	}
	return &Result{Created: true, Path: path, Migration: m}, nil
}

// diff compares baseline and target by model name, and models present in
// both by field name. Type or annotation changes on a field present in both
// are invisible to the diff; only presence and absence are compared.
func diff(baseline, target schema.Snapshot) []migrations.Operation {
	var creates, deletes, addFields, deleteFields []migrations.Operation

	for _, name := range sortedModelNames(target) {
		if baseline.ModelByName(name) == nil {
			model := target.ModelByName(name)
			creates = append(creates, migrations.CreateModel{
				Name:   model.Name,
				Fields: append([]schema.Field(nil), model.Fields...),
			})
		}
	}

	for _, name := range sortedModelNames(baseline) {
		if target.ModelByName(name) == nil {
			deletes = append(deletes, migrations.DeleteModel{Name: name})
			continue
		}

		base := baseline.ModelByName(name)
		want := target.ModelByName(name)

		for _, f := range want.Fields {
			if base.FieldByName(f.Name) == nil {
				addFields = append(addFields, migrations.AddField{Model: name, Field: f})
			}
		}
		for _, f := range base.Fields {
			if want.FieldByName(f.Name) == nil {
				deleteFields = append(deleteFields, migrations.DeleteField{Model: name, Field: f.Name})
			}
		}
	}

	ops := make([]migrations.Operation, 0, len(creates)+len(deletes)+len(addFields)+len(deleteFields))
	ops = append(ops, creates...)
	ops = append(ops, deletes...)
	ops = append(ops, addFields...)
	ops = append(ops, deleteFields...)
	return ops
}

func sortedModelNames(s schema.Snapshot) []string {
	names := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

func numericID(id string) int {
	n := 0
	fmt.Sscanf(id, "%d_", &n)
	return n
}

// Describe renders one operation as a human-readable change line.
func Describe(op migrations.Operation) string {
	switch o := op.(type) {
	case migrations.CreateModel:
		return fmt.Sprintf("Create model %s (%d fields)", o.Name, len(o.Fields))
	case migrations.DeleteModel:
		return fmt.Sprintf("Delete model %s", o.Name)
	case migrations.AddField:
		return fmt.Sprintf("Add field %s.%s (%s)", o.Model, o.Field.Name, o.Field.Type)
	case migrations.DeleteField:
		return fmt.Sprintf("Delete field %s.%s", o.Model, o.Field)
	default:
		return fmt.Sprintf("%T", op)
	}
}
