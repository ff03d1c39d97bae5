// Package models reads the intermediate model declarations produced by the
// source-level extractor (the .models.json file) into a schema snapshot.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/koba/db-migrate/internal/schema"
)

type modelsFile struct {
	Models []modelDecl `json:"Models"`
}

type modelDecl struct {
	Name   string      `json:"Name"`
	Fields []fieldDecl `json:"Fields"`
}

type fieldDecl struct {
	Name        string           `json:"Name"`
	Type        string           `json:"Type"`
	Annotations []annotationDecl `json:"Annotations"`
}

type annotationDecl struct {
	Type  string          `json:"Type"`
	Value json.RawMessage `json:"Value"`
}

// Load reads the models file at path and converts it into a snapshot.
// Model names must be unique in the file, and field names unique within
// their model.
func Load(path string) (schema.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("failed to read models file %s: %w", path, err)
	}

	var file modelsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return schema.Snapshot{}, fmt.Errorf("failed to parse models file %s: %w", path, err)
	}

	var snap schema.Snapshot
	seenModels := make(map[string]bool)

	for _, m := range file.Models {
		if m.Name == "" {
			return schema.Snapshot{}, fmt.Errorf("%s: model without a name", path)
		}
		if seenModels[m.Name] {
			return schema.Snapshot{}, fmt.Errorf("%s: duplicate model %q", path, m.Name)
		}
		seenModels[m.Name] = true

		model := schema.Model{Name: m.Name}
		seenFields := make(map[string]bool)

		for _, f := range m.Fields {
			if f.Name == "" {
				return schema.Snapshot{}, fmt.Errorf("%s: model %q has a field without a name", path, m.Name)
			}
			if seenFields[f.Name] {
				return schema.Snapshot{}, fmt.Errorf("%s: model %q has duplicate field %q", path, m.Name, f.Name)
			}
			seenFields[f.Name] = true

			dbType := schema.DBType(f.Type)
			if !dbType.Valid() {
				return schema.Snapshot{}, fmt.Errorf("%s: field %s.%s has unknown type %q", path, m.Name, f.Name, f.Type)
			}

			field := schema.Field{Name: f.Name, Type: dbType}
			for _, a := range f.Annotations {
				annotation, err := decodeAnnotation(a)
				if err != nil {
					return schema.Snapshot{}, fmt.Errorf("%s: field %s.%s: %w", path, m.Name, f.Name, err)
				}
				field.Annotations = append(field.Annotations, annotation)
			}
			model.Fields = append(model.Fields, field)
		}

		snap.Models = append(snap.Models, model)
	}

	return snap, nil
}

func decodeAnnotation(a annotationDecl) (schema.Annotation, error) {
	kind := schema.AnnotationKind(a.Type)

	switch {
	case kind.IsFlag():
		if len(a.Value) > 0 {
			return schema.Annotation{}, fmt.Errorf("annotation %q takes no value", kind)
		}
		return schema.Annotation{Kind: kind}, nil

	case kind.IsValued():
		return decodeAnnotationValue(kind, a.Value)

	default:
		return schema.Annotation{}, fmt.Errorf("unknown annotation type %q", a.Type)
	}
}

func decodeAnnotationValue(kind schema.AnnotationKind, raw json.RawMessage) (schema.Annotation, error) {
	switch kind {
	case schema.AnnotationMaxLength:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return schema.Annotation{}, fmt.Errorf("annotation %q needs an integer value", kind)
		}
		return schema.Annotation{Kind: kind, MaxLength: n}, nil

	case schema.AnnotationChoices:
		var choices []string
		if err := json.Unmarshal(raw, &choices); err != nil {
			return schema.Annotation{}, fmt.Errorf("annotation %q needs a string array value", kind)
		}
		return schema.Annotation{Kind: kind, Choices: choices}, nil

	case schema.AnnotationDefaultValue, schema.AnnotationConstructValue:
		v, err := decodeScalar(raw)
		if err != nil {
			return schema.Annotation{}, fmt.Errorf("annotation %q: %w", kind, err)
		}
		return schema.Annotation{Kind: kind, Value: &v}, nil

	case schema.AnnotationIndex:
		idx := schema.Index{Priority: schema.DefaultIndexPriority}
		if len(raw) > 0 {
			var decl struct {
				Name     string `json:"Name"`
				Priority *int64 `json:"Priority"`
			}
			if err := json.Unmarshal(raw, &decl); err != nil {
				return schema.Annotation{}, fmt.Errorf("annotation %q needs a table value", kind)
			}
			idx.Name = decl.Name
			if decl.Priority != nil {
				idx.Priority = *decl.Priority
			}
		}
		return schema.Annotation{Kind: kind, Index: &idx}, nil

	case schema.AnnotationValidator:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return schema.Annotation{}, fmt.Errorf("annotation %q needs a string value", kind)
		}
		return schema.Annotation{Kind: kind, Validator: s}, nil
	}

	return schema.Annotation{}, fmt.Errorf("annotation %q has no value decoding", kind)
}

// decodeScalar maps a JSON scalar onto the typed Value variant. Strings in
// RFC 3339 form become time values; an integer array becomes bytes.
func decodeScalar(raw json.RawMessage) (schema.Value, error) {
	if len(raw) == 0 {
		return schema.Value{}, fmt.Errorf("missing scalar value")
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return schema.Value{}, fmt.Errorf("invalid scalar value: %w", err)
	}

	switch v := generic.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return schema.Value{Kind: schema.ValueTime, Time: t}, nil
		}
		return schema.Value{Kind: schema.ValueString, Str: v}, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return schema.Value{Kind: schema.ValueInt, Int: n}, nil
		}
		f, err := v.Float64()
		if err != nil {
			return schema.Value{}, fmt.Errorf("invalid number %q", v.String())
		}
		return schema.Value{Kind: schema.ValueFloat, Float: f}, nil
	case bool:
		return schema.Value{Kind: schema.ValueBool, Bool: v}, nil
	case []interface{}:
		bytes := make([]byte, 0, len(v))
		for _, e := range v {
			n, ok := e.(json.Number)
			if !ok {
				return schema.Value{}, fmt.Errorf("byte array may contain only integers")
			}
			b, err := n.Int64()
			if err != nil || b < 0 || b > 255 {
				return schema.Value{}, fmt.Errorf("byte array value %q out of range", n.String())
			}
			bytes = append(bytes, byte(b))
		}
		return schema.Value{Kind: schema.ValueBytes, Bytes: bytes}, nil
	}

	return schema.Value{}, fmt.Errorf("value must be a scalar or byte array")
}
