package migrations

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/koba/db-migrate/internal/schema"
)

// ParseFile reads and decodes a single migration file. The migration ID is
// taken from the filename, never from the file contents. Every required key
// is checked for presence and type; the first violation aborts with a parse
// error naming the file and the offending key.
func ParseFile(path string) (*Migration, error) {
	var doc map[string]interface{}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if os.IsNotExist(err) {
			return nil, ioError(path, "failed to read migration file", err)
		}
		return nil, &Error{Kind: ErrParse, File: path, Message: "invalid TOML", Cause: err}
	}

	d := &fileDecoder{file: path}
	root, err := d.table(doc, "", "Migration")
	if err != nil {
		return nil, err
	}

	m := &Migration{
		ID: strings.TrimSuffix(filepath.Base(path), ".toml"),
	}

	hash, err := d.integer(root, "Migration", "Hash")
	if err != nil {
		return nil, err
	}
	m.Hash = uint64(hash)

	if m.Initial, err = d.boolean(root, "Migration", "Initial"); err != nil {
		return nil, err
	}
	if m.Dependency, err = d.str(root, "Migration", "Dependency"); err != nil {
		return nil, err
	}
	if m.Replaces, err = d.strSlice(root, "Migration", "Replaces"); err != nil {
		return nil, err
	}

	ops, err := d.tableSlice(root, "Migration", "Operations")
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		prefix := fmt.Sprintf("Migration.Operations[%d]", i)
		decoded, err := d.operation(op, prefix)
		if err != nil {
			return nil, err
		}
		m.Operations = append(m.Operations, decoded)
	}

	return m, nil
}

// Marshal serializes a migration to its TOML file form. The ID is carried
// by the filename and is not written.
func Marshal(m *Migration) ([]byte, error) {
	replaces := m.Replaces
	if replaces == nil {
		replaces = []string{}
	}

	ops := make([]map[string]interface{}, 0, len(m.Operations))
	for _, op := range m.Operations {
		ops = append(ops, encodeOperation(op))
	}

	doc := struct {
		Migration interface{} `toml:"Migration"`
	}{
		Migration: struct {
			Hash       int64                    `toml:"Hash"`
			Initial    bool                     `toml:"Initial"`
			Dependency string                   `toml:"Dependency"`
			Replaces   []string                 `toml:"Replaces"`
			Operations []map[string]interface{} `toml:"Operations"`
		}{
			Hash:       int64(m.Hash),
			Initial:    m.Initial,
			Dependency: m.Dependency,
			Replaces:   replaces,
			Operations: ops,
		},
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode migration %s: %w", m.ID, err)
	}
	return buf.Bytes(), nil
}

// WriteFile persists a migration into dir as <ID>.toml. The file is created
// exclusively so a concurrent writer that raced to the same sequence number
// fails instead of overwriting.
func WriteFile(dir string, m *Migration) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, m.ID+".toml")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", ioError(path, "failed to create migration file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", ioError(path, "failed to write migration file", err)
	}
	return path, nil
}

func encodeOperation(op Operation) map[string]interface{} {
	switch o := op.(type) {
	case CreateModel:
		fields := make([]map[string]interface{}, 0, len(o.Fields))
		for _, f := range o.Fields {
			fields = append(fields, encodeField(f))
		}
		return map[string]interface{}{
			"Type":   OpCreateModel,
			"Name":   o.Name,
			"Fields": fields,
		}
	case DeleteModel:
		return map[string]interface{}{
			"Type": OpDeleteModel,
			"Name": o.Name,
		}
	case AddField:
		return map[string]interface{}{
			"Type":  OpAddField,
			"Name":  o.Model,
			"Field": encodeField(o.Field),
		}
	case DeleteField:
		return map[string]interface{}{
			"Type":  OpDeleteField,
			"Name":  o.Model,
			"Field": map[string]interface{}{"Name": o.Field},
		}
	default:
		panic(fmt.Sprintf("unhandled operation type %T", op))
	}
}

func encodeField(f schema.Field) map[string]interface{} {
	annotations := make([]map[string]interface{}, 0, len(f.Annotations))
	for _, a := range f.Annotations {
		annotations = append(annotations, encodeAnnotation(a))
	}
	return map[string]interface{}{
		"Name":        f.Name,
		"Type":        string(f.Type),
		"Annotations": annotations,
	}
}

func encodeAnnotation(a schema.Annotation) map[string]interface{} {
	out := map[string]interface{}{"Type": string(a.Kind)}
	switch a.Kind {
	case schema.AnnotationMaxLength:
		out["Value"] = a.MaxLength
	case schema.AnnotationChoices:
		choices := a.Choices
		if choices == nil {
			choices = []string{}
		}
		out["Value"] = choices
	case schema.AnnotationDefaultValue, schema.AnnotationConstructValue:
		if a.Value != nil {
			out["Value"] = encodeValue(*a.Value)
		}
	case schema.AnnotationIndex:
		if a.Index != nil {
			value := map[string]interface{}{}
			if a.Index.Name != "" {
				value["Name"] = a.Index.Name
			}
			if a.Index.Priority != 0 {
				value["Priority"] = a.Index.Priority
			}
			out["Value"] = value
		}
	case schema.AnnotationValidator:
		out["Value"] = a.Validator
	}
	return out
}

func encodeValue(v schema.Value) interface{} {
	switch v.Kind {
	case schema.ValueString:
		return v.Str
	case schema.ValueBytes:
		// Bytes travel as an array of integers; TOML has no binary scalar.
		ints := make([]int64, len(v.Bytes))
		for i, b := range v.Bytes {
			ints[i] = int64(b)
		}
		return ints
	case schema.ValueInt:
		return v.Int
	case schema.ValueFloat:
		return v.Float
	case schema.ValueBool:
		return v.Bool
	case schema.ValueTime:
		return v.Time
	default:
		panic(fmt.Sprintf("unhandled value kind %q", v.Kind))
	}
}

// fileDecoder walks the decoded TOML tree of one migration file and turns
// shape violations into parse errors carrying the full key path.
type fileDecoder struct {
	file string
}

func (d *fileDecoder) keyPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (d *fileDecoder) table(m map[string]interface{}, prefix, key string) (map[string]interface{}, error) {
	raw, ok := m[key]
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "table")
	}
	t, ok := raw.(map[string]interface{})
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "table")
	}
	return t, nil
}

func (d *fileDecoder) str(m map[string]interface{}, prefix, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", parseError(d.file, d.keyPath(prefix, key), "string")
	}
	s, ok := raw.(string)
	if !ok {
		return "", parseError(d.file, d.keyPath(prefix, key), "string")
	}
	return s, nil
}

func (d *fileDecoder) boolean(m map[string]interface{}, prefix, key string) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, parseError(d.file, d.keyPath(prefix, key), "boolean")
	}
	b, ok := raw.(bool)
	if !ok {
		return false, parseError(d.file, d.keyPath(prefix, key), "boolean")
	}
	return b, nil
}

func (d *fileDecoder) integer(m map[string]interface{}, prefix, key string) (int64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, parseError(d.file, d.keyPath(prefix, key), "integer")
	}
	n, ok := raw.(int64)
	if !ok {
		return 0, parseError(d.file, d.keyPath(prefix, key), "integer")
	}
	return n, nil
}

func (d *fileDecoder) strSlice(m map[string]interface{}, prefix, key string) ([]string, error) {
	raw, ok := m[key]
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "array of strings")
	}
	out, ok := toStringSlice(raw)
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "array of strings")
	}
	return out, nil
}

func (d *fileDecoder) tableSlice(m map[string]interface{}, prefix, key string) ([]map[string]interface{}, error) {
	raw, ok := m[key]
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "array of tables")
	}
	out, ok := toTableSlice(raw)
	if !ok {
		return nil, parseError(d.file, d.keyPath(prefix, key), "array of tables")
	}
	return out, nil
}

func (d *fileDecoder) operation(op map[string]interface{}, prefix string) (Operation, error) {
	opType, err := d.str(op, prefix, "Type")
	if err != nil {
		return nil, err
	}

	switch opType {
	case OpCreateModel:
		name, err := d.str(op, prefix, "Name")
		if err != nil {
			return nil, err
		}
		rawFields, err := d.tableSlice(op, prefix, "Fields")
		if err != nil {
			return nil, err
		}
		if len(rawFields) == 0 {
			return nil, parseError(d.file, d.keyPath(prefix, "Fields"), "non-empty array of tables")
		}
		fields := make([]schema.Field, 0, len(rawFields))
		for i, rf := range rawFields {
			f, err := d.field(rf, fmt.Sprintf("%s.Fields[%d]", prefix, i))
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		return CreateModel{Name: name, Fields: fields}, nil

	case OpDeleteModel:
		name, err := d.str(op, prefix, "Name")
		if err != nil {
			return nil, err
		}
		return DeleteModel{Name: name}, nil

	case OpAddField:
		model, err := d.str(op, prefix, "Name")
		if err != nil {
			return nil, err
		}
		rawField, err := d.table(op, prefix, "Field")
		if err != nil {
			return nil, err
		}
		f, err := d.field(rawField, d.keyPath(prefix, "Field"))
		if err != nil {
			return nil, err
		}
		return AddField{Model: model, Field: f}, nil

	case OpDeleteField:
		model, err := d.str(op, prefix, "Name")
		if err != nil {
			return nil, err
		}
		rawField, err := d.table(op, prefix, "Field")
		if err != nil {
			return nil, err
		}
		fieldName, err := d.str(rawField, d.keyPath(prefix, "Field"), "Name")
		if err != nil {
			return nil, err
		}
		return DeleteField{Model: model, Field: fieldName}, nil

	default:
		return nil, &Error{
			Kind:    ErrParse,
			File:    d.file,
			Key:     d.keyPath(prefix, "Type"),
			Message: fmt.Sprintf("unknown operation type %q", opType),
		}
	}
}

func (d *fileDecoder) field(f map[string]interface{}, prefix string) (schema.Field, error) {
	name, err := d.str(f, prefix, "Name")
	if err != nil {
		return schema.Field{}, err
	}
	typeName, err := d.str(f, prefix, "Type")
	if err != nil {
		return schema.Field{}, err
	}
	dbType := schema.DBType(typeName)
	if !dbType.Valid() {
		return schema.Field{}, &Error{
			Kind:    ErrParse,
			File:    d.file,
			Key:     d.keyPath(prefix, "Type"),
			Message: fmt.Sprintf("unknown db type %q", typeName),
		}
	}

	rawAnnotations, err := d.tableSlice(f, prefix, "Annotations")
	if err != nil {
		return schema.Field{}, err
	}
	annotations := make([]schema.Annotation, 0, len(rawAnnotations))
	for i, ra := range rawAnnotations {
		a, err := d.annotation(ra, fmt.Sprintf("%s.Annotations[%d]", prefix, i))
		if err != nil {
			return schema.Field{}, err
		}
		annotations = append(annotations, a)
	}

	return schema.Field{Name: name, Type: dbType, Annotations: annotations}, nil
}

func (d *fileDecoder) annotation(a map[string]interface{}, prefix string) (schema.Annotation, error) {
	typeName, err := d.str(a, prefix, "Type")
	if err != nil {
		return schema.Annotation{}, err
	}
	kind := schema.AnnotationKind(typeName)

	value, hasValue := a["Value"]
	valueKey := d.keyPath(prefix, "Value")

	switch {
	case kind.IsFlag():
		if hasValue {
			return schema.Annotation{}, &Error{
				Kind:    ErrUnknownAnnotationValue,
				File:    d.file,
				Key:     valueKey,
				Message: fmt.Sprintf("annotation %q takes no value", kind),
			}
		}
		return schema.Annotation{Kind: kind}, nil

	case kind.IsValued():
		return d.annotationValue(kind, value, hasValue, valueKey)

	default:
		return schema.Annotation{}, &Error{
			Kind:    ErrParse,
			File:    d.file,
			Key:     d.keyPath(prefix, "Type"),
			Message: fmt.Sprintf("unknown annotation type %q", typeName),
		}
	}
}

func (d *fileDecoder) annotationValue(kind schema.AnnotationKind, value interface{}, hasValue bool, key string) (schema.Annotation, error) {
	badValue := func(expected string) (schema.Annotation, error) {
		return schema.Annotation{}, &Error{
			Kind:     ErrUnknownAnnotationValue,
			File:     d.file,
			Key:      key,
			Expected: expected,
		}
	}

	switch kind {
	case schema.AnnotationMaxLength:
		n, ok := value.(int64)
		if !hasValue || !ok {
			return badValue("integer")
		}
		return schema.Annotation{Kind: kind, MaxLength: n}, nil

	case schema.AnnotationChoices:
		choices, ok := toStringSlice(value)
		if !hasValue || !ok {
			return badValue("array of strings")
		}
		return schema.Annotation{Kind: kind, Choices: choices}, nil

	case schema.AnnotationDefaultValue, schema.AnnotationConstructValue:
		if !hasValue {
			return badValue("scalar")
		}
		v, ok := decodeValue(value)
		if !ok {
			return badValue("scalar")
		}
		return schema.Annotation{Kind: kind, Value: &v}, nil

	case schema.AnnotationIndex:
		// Name and priority are both optional; a bare Index annotation is
		// an unnamed index with the default priority.
		idx := &schema.Index{Priority: schema.DefaultIndexPriority}
		if !hasValue {
			return schema.Annotation{Kind: kind, Index: idx}, nil
		}
		t, ok := value.(map[string]interface{})
		if !ok {
			return badValue("table")
		}
		if raw, ok := t["Name"]; ok {
			name, ok := raw.(string)
			if !ok {
				return badValue("table with string Name")
			}
			idx.Name = name
		}
		if raw, ok := t["Priority"]; ok {
			priority, ok := raw.(int64)
			if !ok {
				return badValue("table with integer Priority")
			}
			idx.Priority = priority
		}
		return schema.Annotation{Kind: kind, Index: idx}, nil

	case schema.AnnotationValidator:
		s, ok := value.(string)
		if !hasValue || !ok {
			return badValue("string")
		}
		return schema.Annotation{Kind: kind, Validator: s}, nil
	}

	return badValue("value")
}

// decodeValue maps a natural TOML scalar onto the typed Value variant. Any
// non-scalar shape other than a byte array is rejected by the caller.
func decodeValue(raw interface{}) (schema.Value, bool) {
	switch v := raw.(type) {
	case string:
		return schema.Value{Kind: schema.ValueString, Str: v}, true
	case int64:
		return schema.Value{Kind: schema.ValueInt, Int: v}, true
	case float64:
		return schema.Value{Kind: schema.ValueFloat, Float: v}, true
	case bool:
		return schema.Value{Kind: schema.ValueBool, Bool: v}, true
	case time.Time:
		return schema.Value{Kind: schema.ValueTime, Time: v}, true
	case []interface{}:
		bytes := make([]byte, 0, len(v))
		for _, e := range v {
			n, ok := e.(int64)
			if !ok || n < 0 || n > 255 {
				return schema.Value{}, false
			}
			bytes = append(bytes, byte(n))
		}
		return schema.Value{Kind: schema.ValueBytes, Bytes: bytes}, true
	}
	return schema.Value{}, false
}

func toStringSlice(raw interface{}) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toTableSlice(raw interface{}) ([]map[string]interface{}, bool) {
	switch v := raw.(type) {
	case []map[string]interface{}:
		return v, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, e := range v {
			t, ok := e.(map[string]interface{})
			if !ok {
				return nil, false
			}
			out = append(out, t)
		}
		return out, true
	}
	return nil, false
}
