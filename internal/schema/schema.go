package schema

import (
	"fmt"
	"time"
)

// DBType is the database-level type of a field.
type DBType string

const (
	TypeVarchar   DBType = "varchar"
	TypeVarbinary DBType = "varbinary"
	TypeInt8      DBType = "int8"
	TypeInt16     DBType = "int16"
	TypeInt32     DBType = "int32"
	TypeInt64     DBType = "int64"
	TypeUint8     DBType = "uint8"
	TypeUint16    DBType = "uint16"
	TypeUint32    DBType = "uint32"
	TypeUint64    DBType = "uint64"
	TypeFloat     DBType = "float"
	TypeDouble    DBType = "double"
	TypeBoolean   DBType = "boolean"
	TypeDate      DBType = "date"
	TypeDatetime  DBType = "datetime"
	TypeTimestamp DBType = "timestamp"
	TypeTime      DBType = "time"
	TypeChoices   DBType = "choices"
	TypeSet       DBType = "set"
	TypeNotNull   DBType = "not_null"
)

var dbTypes = map[DBType]bool{
	TypeVarchar: true, TypeVarbinary: true,
	TypeInt8: true, TypeInt16: true, TypeInt32: true, TypeInt64: true,
	TypeUint8: true, TypeUint16: true, TypeUint32: true, TypeUint64: true,
	TypeFloat: true, TypeDouble: true, TypeBoolean: true,
	TypeDate: true, TypeDatetime: true, TypeTimestamp: true, TypeTime: true,
	TypeChoices: true, TypeSet: true, TypeNotNull: true,
}

// Valid reports whether t is a member of the closed DBType set.
func (t DBType) Valid() bool {
	return dbTypes[t]
}

// AnnotationKind identifies an annotation variant.
type AnnotationKind string

const (
	AnnotationNotNull        AnnotationKind = "NotNull"
	AnnotationUnique         AnnotationKind = "Unique"
	AnnotationPrimaryKey     AnnotationKind = "PrimaryKey"
	AnnotationAutoCreateTime AnnotationKind = "AutoCreateTime"
	AnnotationAutoUpdateTime AnnotationKind = "AutoUpdateTime"
	AnnotationAutoincrement  AnnotationKind = "Autoincrement"
	AnnotationMaxLength      AnnotationKind = "MaxLength"
	AnnotationChoices        AnnotationKind = "Choices"
	AnnotationDefaultValue   AnnotationKind = "DefaultValue"
	AnnotationConstructValue AnnotationKind = "ConstructValue"
	AnnotationIndex          AnnotationKind = "Index"
	AnnotationValidator      AnnotationKind = "Validator"
)

// DefaultIndexPriority is used when an Index annotation omits its priority.
const DefaultIndexPriority = 10

// IsFlag reports whether k carries no value in the persisted form.
func (k AnnotationKind) IsFlag() bool {
	switch k {
	case AnnotationNotNull, AnnotationUnique, AnnotationPrimaryKey,
		AnnotationAutoCreateTime, AnnotationAutoUpdateTime, AnnotationAutoincrement:
		return true
	}
	return false
}

// IsValued reports whether k requires a value in the persisted form.
func (k AnnotationKind) IsValued() bool {
	switch k {
	case AnnotationMaxLength, AnnotationChoices, AnnotationDefaultValue,
		AnnotationConstructValue, AnnotationIndex, AnnotationValidator:
		return true
	}
	return false
}

// ValueKind identifies the scalar type carried by a Value.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueBytes  ValueKind = "bytes"
	ValueInt    ValueKind = "int"
	ValueFloat  ValueKind = "float"
	ValueBool   ValueKind = "bool"
	ValueTime   ValueKind = "time"
)

// Value is a typed scalar carried by a DefaultValue or ConstructValue
// annotation. Exactly the payload field matching Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
}

// Equal compares two values, using time.Equal for the time case.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == o.Str
	case ValueBytes:
		return string(v.Bytes) == string(o.Bytes)
	case ValueInt:
		return v.Int == o.Int
	case ValueFloat:
		return v.Float == o.Float
	case ValueBool:
		return v.Bool == o.Bool
	case ValueTime:
		return v.Time.Equal(o.Time)
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case ValueFloat:
		return fmt.Sprintf("%g", v.Float)
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueTime:
		return v.Time.Format(time.RFC3339)
	}
	return ""
}

// Index is the payload of an Index annotation. Name and Priority are both
// optional in the persisted form; a zero Priority decodes to
// DefaultIndexPriority.
type Index struct {
	Name     string
	Priority int64
}

// Annotation is one variant of the closed annotation set. Flag kinds carry
// no payload; valued kinds populate exactly the payload field matching Kind.
type Annotation struct {
	Kind      AnnotationKind
	MaxLength int64
	Choices   []string
	Value     *Value // DefaultValue or ConstructValue
	Index     *Index
	Validator string
}

// Equal compares two annotations including their payloads.
func (a Annotation) Equal(o Annotation) bool {
	if a.Kind != o.Kind {
		return false
	}
	switch a.Kind {
	case AnnotationMaxLength:
		return a.MaxLength == o.MaxLength
	case AnnotationChoices:
		if len(a.Choices) != len(o.Choices) {
			return false
		}
		for i := range a.Choices {
			if a.Choices[i] != o.Choices[i] {
				return false
			}
		}
		return true
	case AnnotationDefaultValue, AnnotationConstructValue:
		if (a.Value == nil) != (o.Value == nil) {
			return false
		}
		return a.Value == nil || a.Value.Equal(*o.Value)
	case AnnotationIndex:
		if (a.Index == nil) != (o.Index == nil) {
			return false
		}
		return a.Index == nil || *a.Index == *o.Index
	case AnnotationValidator:
		return a.Validator == o.Validator
	}
	return true
}

// Field represents a single column of a model.
type Field struct {
	Name        string
	Type        DBType
	Annotations []Annotation
}

// HasAnnotation reports whether the field carries an annotation of kind k.
func (f *Field) HasAnnotation(k AnnotationKind) bool {
	for i := range f.Annotations {
		if f.Annotations[i].Kind == k {
			return true
		}
	}
	return false
}

// Annotation returns the first annotation of kind k, or nil.
func (f *Field) Annotation(k AnnotationKind) *Annotation {
	for i := range f.Annotations {
		if f.Annotations[i].Kind == k {
			return &f.Annotations[i]
		}
	}
	return nil
}

// Model represents a database model and its ordered fields.
type Model struct {
	Name   string
	Fields []Field
}

// FieldByName returns the field with the given name, or nil.
func (m *Model) FieldByName(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// Snapshot is the desired schema state at one point in time: an ordered list
// of models. It is built externally and treated as immutable.
type Snapshot struct {
	Models []Model
}

// ModelByName returns the model with the given name, or nil.
func (s *Snapshot) ModelByName(name string) *Model {
	for i := range s.Models {
		if s.Models[i].Name == name {
			return &s.Models[i]
		}
	}
	return nil
}
