package generator_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/db-migrate/internal/generator"
	"github.com/koba/db-migrate/internal/migrations"
	"github.com/koba/db-migrate/internal/schema"
)

func idField() schema.Field {
	return schema.Field{
		Name:        "id",
		Type:        schema.TypeUint64,
		Annotations: []schema.Annotation{{Kind: schema.AnnotationPrimaryKey}},
	}
}

func userSnapshot(fields ...schema.Field) schema.Snapshot {
	return schema.Snapshot{Models: []schema.Model{{Name: "User", Fields: fields}}}
}

func TestGenerateInitial(t *testing.T) {
	dir := t.TempDir()
	target := userSnapshot(idField())

	result, err := generator.Generate(dir, target, nil, "")
	require.NoError(t, err)
	require.True(t, result.Created)

	m := result.Migration
	assert.Equal(t, "0001_initial", m.ID)
	assert.True(t, m.Initial)
	assert.Empty(t, m.Dependency)
	assert.Equal(t, target.Hash(), m.Hash)

	require.Len(t, m.Operations, 1)
	create, ok := m.Operations[0].(migrations.CreateModel)
	require.True(t, ok)
	assert.Equal(t, "User", create.Name)
	require.Len(t, create.Fields, 1)
	assert.Equal(t, "id", create.Fields[0].Name)
	assert.Equal(t, schema.TypeUint64, create.Fields[0].Type)

	parsed, err := migrations.ParseFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
}

func TestGenerateInitialWithLabel(t *testing.T) {
	dir := t.TempDir()

	result, err := generator.Generate(dir, userSnapshot(idField()), nil, "bootstrap")
	require.NoError(t, err)
	assert.Equal(t, "0001_bootstrap", result.Migration.ID)
}

func TestGenerateRejectsBadLabel(t *testing.T) {
	dir := t.TempDir()

	_, err := generator.Generate(dir, userSnapshot(idField()), nil, "no spaces")
	assert.True(t, migrations.IsKind(err, migrations.ErrInvalidMigrationName))

	_, err = generator.Generate(dir, userSnapshot(idField()), nil, "no-dashes")
	assert.True(t, migrations.IsKind(err, migrations.ErrInvalidMigrationName))
}

func TestGenerateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := userSnapshot(idField())

	first, err := generator.Generate(dir, target, nil, "")
	require.NoError(t, err)
	require.True(t, first.Created)

	existing, _, err := migrations.ScanDir(dir)
	require.NoError(t, err)

	second, err := generator.Generate(dir, target, existing, "")
	require.NoError(t, err)
	assert.False(t, second.Created)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGenerateDiff(t *testing.T) {
	dir := t.TempDir()

	baseline := userSnapshot(idField())
	existing := []*migrations.Migration{
		{
			ID:       "0001_initial",
			Hash:     baseline.Hash(),
			Initial:  true,
			Replaces: []string{},
			Operations: []migrations.Operation{
				migrations.CreateModel{Name: "User", Fields: []schema.Field{idField()}},
			},
		},
	}

	nameField := schema.Field{
		Name:        "name",
		Type:        schema.TypeVarchar,
		Annotations: []schema.Annotation{{Kind: schema.AnnotationNotNull}},
	}
	target := schema.Snapshot{Models: []schema.Model{
		{Name: "User", Fields: []schema.Field{idField(), nameField}},
		{Name: "Post", Fields: []schema.Field{idField()}},
	}}

	result, err := generator.Generate(dir, target, existing, "")
	require.NoError(t, err)
	require.True(t, result.Created)

	m := result.Migration
	assert.Equal(t, "0002_placeholder", m.ID)
	assert.Equal(t, "0001_initial", m.Dependency)
	assert.False(t, m.Initial)
	assert.Equal(t, target.Hash(), m.Hash)

	// Model-level operations come before field-level ones.
	require.Len(t, m.Operations, 2)
	create, ok := m.Operations[0].(migrations.CreateModel)
	require.True(t, ok)
	assert.Equal(t, "Post", create.Name)
	require.Len(t, create.Fields, 1)
	assert.Equal(t, "id", create.Fields[0].Name)

	add, ok := m.Operations[1].(migrations.AddField)
	require.True(t, ok)
	assert.Equal(t, "User", add.Model)
	assert.Equal(t, "name", add.Field.Name)
}

func TestGenerateDeletes(t *testing.T) {
	dir := t.TempDir()

	baseline := schema.Snapshot{Models: []schema.Model{
		{Name: "User", Fields: []schema.Field{idField(), {Name: "nickname", Type: schema.TypeVarchar}}},
		{Name: "Legacy", Fields: []schema.Field{idField()}},
	}}
	existing := []*migrations.Migration{
		{
			ID:       "0001_initial",
			Hash:     baseline.Hash(),
			Initial:  true,
			Replaces: []string{},
			Operations: []migrations.Operation{
				migrations.CreateModel{Name: "User", Fields: baseline.Models[0].Fields},
				migrations.CreateModel{Name: "Legacy", Fields: baseline.Models[1].Fields},
			},
		},
	}

	target := userSnapshot(idField())

	result, err := generator.Generate(dir, target, existing, "cleanup")
	require.NoError(t, err)
	require.True(t, result.Created)

	m := result.Migration
	assert.Equal(t, "0002_cleanup", m.ID)
	require.Len(t, m.Operations, 2)

	del, ok := m.Operations[0].(migrations.DeleteModel)
	require.True(t, ok)
	assert.Equal(t, "Legacy", del.Name)

	delField, ok := m.Operations[1].(migrations.DeleteField)
	require.True(t, ok)
	assert.Equal(t, "User", delField.Model)
	assert.Equal(t, "nickname", delField.Field)
}

func TestGenerateIgnoresFieldModification(t *testing.T) {
	dir := t.TempDir()

	baseline := userSnapshot(idField())
	existing := []*migrations.Migration{
		{
			ID:       "0001_initial",
			Hash:     baseline.Hash(),
			Initial:  true,
			Replaces: []string{},
			Operations: []migrations.Operation{
				migrations.CreateModel{Name: "User", Fields: []schema.Field{idField()}},
			},
		},
	}

	// Same field name, different type: invisible to the diff. The hash
	// differs, but no operation is produced and nothing is written.
	target := userSnapshot(schema.Field{Name: "id", Type: schema.TypeInt64})

	result, err := generator.Generate(dir, target, existing, "")
	require.NoError(t, err)
	assert.False(t, result.Created)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateDetectsRacingWriter(t *testing.T) {
	dir := t.TempDir()

	baseline := userSnapshot(idField())
	existing := []*migrations.Migration{
		{
			ID:       "0001_initial",
			Hash:     baseline.Hash(),
			Initial:  true,
			Replaces: []string{},
			Operations: []migrations.Operation{
				migrations.CreateModel{Name: "User", Fields: []schema.Field{idField()}},
			},
		},
	}

	// Another writer took sequence 0002 after our read.
	racer := &migrations.Migration{
		ID:         "0002_racer",
		Hash:       7,
		Dependency: "0001_initial",
		Replaces:   []string{},
		Operations: []migrations.Operation{migrations.DeleteModel{Name: "X"}},
	}
	_, err := migrations.WriteFile(dir, racer)
	require.NoError(t, err)

	target := schema.Snapshot{Models: []schema.Model{
		{Name: "User", Fields: []schema.Field{idField()}},
		{Name: "Post", Fields: []schema.Field{idField()}},
	}}

	_, err = generator.Generate(dir, target, existing, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence")
}

func TestGenerateFailsOnInvalidHistory(t *testing.T) {
	dir := t.TempDir()

	existing := []*migrations.Migration{
		record("0001_initial", "", true),
		record("0002_a", "0001_initial", false),
		record("0002_b", "0001_initial", false),
	}

	_, err := generator.Generate(dir, userSnapshot(idField()), existing, "")
	assert.True(t, migrations.IsKind(err, migrations.ErrBranchingDetected))
}

func record(id, dependency string, initial bool, replaces ...string) *migrations.Migration {
	return &migrations.Migration{
		ID:         id,
		Initial:    initial,
		Dependency: dependency,
		Replaces:   replaces,
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Create model User (1 fields)",
		generator.Describe(migrations.CreateModel{Name: "User", Fields: []schema.Field{idField()}}))
	assert.Equal(t, "Delete model User", generator.Describe(migrations.DeleteModel{Name: "User"}))
	assert.Equal(t, "Add field User.name (varchar)",
		generator.Describe(migrations.AddField{Model: "User", Field: schema.Field{Name: "name", Type: schema.TypeVarchar}}))
	assert.Equal(t, "Delete field User.name",
		generator.Describe(migrations.DeleteField{Model: "User", Field: "name"}))
}
