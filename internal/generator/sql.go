package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/koba/db-migrate/internal/migrations"
	"github.com/koba/db-migrate/internal/schema"
)

// SQLRenderer translates migration operations into DDL statements for one
// database dialect.
type SQLRenderer struct {
	dialect string
}

// NewSQLRenderer creates a renderer for "mysql", "postgres" or "sqlite".
func NewSQLRenderer(dialect string) (*SQLRenderer, error) {
	switch dialect {
	case "mysql", "postgres", "sqlite":
		return &SQLRenderer{dialect: dialect}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// RenderMigration renders every operation of m into an ordered list of SQL
// statements.
func (r *SQLRenderer) RenderMigration(m *migrations.Migration) ([]string, error) {
	var statements []string

	for _, op := range m.Operations {
		switch o := op.(type) {
		case migrations.CreateModel:
			stmts, err := r.renderCreateTable(o)
			if err != nil {
				return nil, fmt.Errorf("migration %s: %w", m.ID, err)
			}
			statements = append(statements, stmts...)

		case migrations.DeleteModel:
			statements = append(statements, fmt.Sprintf("DROP TABLE %s;", r.quote(o.Name)))

		case migrations.AddField:
			def, err := r.columnDefinition(o.Model, o.Field)
			if err != nil {
				return nil, fmt.Errorf("migration %s: %w", m.ID, err)
			}
			statements = append(statements,
				fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", r.quote(o.Model), def))
			statements = append(statements, r.indexStatements(o.Model, []schema.Field{o.Field})...)

		case migrations.DeleteField:
			statements = append(statements,
				fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", r.quote(o.Model), r.quote(o.Field)))

		default:
			return nil, fmt.Errorf("migration %s: unhandled operation type %T", m.ID, op)
		}
	}

	return statements, nil
}

func (r *SQLRenderer) renderCreateTable(op migrations.CreateModel) ([]string, error) {
	parts := make([]string, 0, len(op.Fields))
	for _, f := range op.Fields {
		def, err := r.columnDefinition(op.Name, f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, def)
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", r.quote(op.Name), strings.Join(parts, ",\n  "))
	return append([]string{create}, r.indexStatements(op.Name, op.Fields)...), nil
}

// indexStatements emits a CREATE INDEX per Index annotation, lower priority
// first. Unnamed indexes get idx_<table>_<column>.
func (r *SQLRenderer) indexStatements(table string, fields []schema.Field) []string {
	type pending struct {
		priority int64
		stmt     string
	}
	var indexes []pending

	for _, f := range fields {
		for _, a := range f.Annotations {
			if a.Kind != schema.AnnotationIndex {
				continue
			}
			name := fmt.Sprintf("idx_%s_%s", table, f.Name)
			priority := int64(schema.DefaultIndexPriority)
			if a.Index != nil {
				if a.Index.Name != "" {
					name = a.Index.Name
				}
				if a.Index.Priority != 0 {
					priority = a.Index.Priority
				}
			}
			indexes = append(indexes, pending{
				priority: priority,
				stmt: fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
					r.quote(name), r.quote(table), r.quote(f.Name)),
			})
		}
	}

	sort.SliceStable(indexes, func(i, j int) bool { return indexes[i].priority < indexes[j].priority })

	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, idx.stmt)
	}
	return out
}

func (r *SQLRenderer) columnDefinition(table string, f schema.Field) (string, error) {
	sqlType, err := r.columnType(f)
	if err != nil {
		return "", fmt.Errorf("column %s.%s: %w", table, f.Name, err)
	}

	def := r.quote(f.Name) + " " + sqlType

	if f.HasAnnotation(schema.AnnotationPrimaryKey) {
		def += " PRIMARY KEY"
	}
	if f.HasAnnotation(schema.AnnotationNotNull) && !f.HasAnnotation(schema.AnnotationPrimaryKey) {
		def += " NOT NULL"
	}
	if f.HasAnnotation(schema.AnnotationUnique) {
		def += " UNIQUE"
	}
	if f.HasAnnotation(schema.AnnotationAutoincrement) {
		switch r.dialect {
		case "mysql":
			def += " AUTO_INCREMENT"
		case "postgres":
			def += " GENERATED BY DEFAULT AS IDENTITY"
		case "sqlite":
			// INTEGER PRIMARY KEY is already an alias for the rowid.
		}
	}
	if a := f.Annotation(schema.AnnotationDefaultValue); a != nil && a.Value != nil {
		def += " DEFAULT " + r.literal(*a.Value)
	}
	if f.HasAnnotation(schema.AnnotationAutoCreateTime) {
		def += " DEFAULT CURRENT_TIMESTAMP"
	}
	if f.HasAnnotation(schema.AnnotationAutoUpdateTime) && r.dialect == "mysql" {
		def += " ON UPDATE CURRENT_TIMESTAMP"
	}

	return def, nil
}

func (r *SQLRenderer) columnType(f schema.Field) (string, error) {
	maxLength := int64(255)
	if a := f.Annotation(schema.AnnotationMaxLength); a != nil {
		maxLength = a.MaxLength
	}

	switch f.Type {
	case schema.TypeVarchar:
		if r.dialect == "sqlite" {
			return "TEXT", nil
		}
		return fmt.Sprintf("VARCHAR(%d)", maxLength), nil
	case schema.TypeVarbinary:
		switch r.dialect {
		case "mysql":
			return fmt.Sprintf("VARBINARY(%d)", maxLength), nil
		case "postgres":
			return "BYTEA", nil
		default:
			return "BLOB", nil
		}
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64,
		schema.TypeUint8, schema.TypeUint16, schema.TypeUint32, schema.TypeUint64:
		return r.integerType(f.Type), nil
	case schema.TypeFloat:
		if r.dialect == "postgres" {
			return "REAL", nil
		}
		return "FLOAT", nil
	case schema.TypeDouble:
		if r.dialect == "postgres" {
			return "DOUBLE PRECISION", nil
		}
		return "DOUBLE", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeDatetime:
		if r.dialect == "postgres" {
			return "TIMESTAMP", nil
		}
		return "DATETIME", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeTime:
		return "TIME", nil
	case schema.TypeChoices:
		return r.choicesType(f)
	case schema.TypeSet:
		if r.dialect == "mysql" {
			return r.enumLike("SET", f)
		}
		return "TEXT", nil
	default:
		return "", fmt.Errorf("db type %q has no column representation", f.Type)
	}
}

func (r *SQLRenderer) integerType(t schema.DBType) string {
	if r.dialect == "sqlite" {
		return "INTEGER"
	}

	unsigned := false
	base := ""
	switch t {
	case schema.TypeInt8:
		base = "TINYINT"
	case schema.TypeInt16:
		base = "SMALLINT"
	case schema.TypeInt32:
		base = "INT"
	case schema.TypeInt64:
		base = "BIGINT"
	case schema.TypeUint8:
		base, unsigned = "TINYINT", true
	case schema.TypeUint16:
		base, unsigned = "SMALLINT", true
	case schema.TypeUint32:
		base, unsigned = "INT", true
	case schema.TypeUint64:
		base, unsigned = "BIGINT", true
	}

	if r.dialect == "postgres" {
		// Postgres has no unsigned integers; widen one size instead.
		switch t {
		case schema.TypeInt8, schema.TypeInt16, schema.TypeUint8:
			return "SMALLINT"
		case schema.TypeInt32, schema.TypeUint16:
			return "INTEGER"
		case schema.TypeInt64, schema.TypeUint32:
			return "BIGINT"
		case schema.TypeUint64:
			return "NUMERIC(20)"
		}
	}

	if unsigned {
		return base + " UNSIGNED"
	}
	return base
}

func (r *SQLRenderer) choicesType(f schema.Field) (string, error) {
	if r.dialect == "mysql" {
		return r.enumLike("ENUM", f)
	}

	a := f.Annotation(schema.AnnotationChoices)
	if a == nil {
		return "", fmt.Errorf("choices column is missing its Choices annotation")
	}
	quoted := make([]string, 0, len(a.Choices))
	for _, c := range a.Choices {
		quoted = append(quoted, quoteString(c))
	}
	return fmt.Sprintf("TEXT CHECK (%s IN (%s))", r.quote(f.Name), strings.Join(quoted, ", ")), nil
}

func (r *SQLRenderer) enumLike(keyword string, f schema.Field) (string, error) {
	a := f.Annotation(schema.AnnotationChoices)
	if a == nil {
		return "", fmt.Errorf("%s column is missing its Choices annotation", strings.ToLower(keyword))
	}
	quoted := make([]string, 0, len(a.Choices))
	for _, c := range a.Choices {
		quoted = append(quoted, quoteString(c))
	}
	return fmt.Sprintf("%s(%s)", keyword, strings.Join(quoted, ", ")), nil
}

func (r *SQLRenderer) literal(v schema.Value) string {
	switch v.Kind {
	case schema.ValueString:
		return quoteString(v.Str)
	case schema.ValueBytes:
		if r.dialect == "postgres" {
			return fmt.Sprintf("'\\x%x'", v.Bytes)
		}
		return fmt.Sprintf("X'%x'", v.Bytes)
	case schema.ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case schema.ValueFloat:
		return fmt.Sprintf("%g", v.Float)
	case schema.ValueBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case schema.ValueTime:
		return quoteString(v.Time.Format("2006-01-02 15:04:05"))
	}
	return "NULL"
}

func (r *SQLRenderer) quote(name string) string {
	if r.dialect == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
