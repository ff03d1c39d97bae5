package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Hash computes a deterministic 64-bit content hash of the snapshot. Models
// and fields are keyed by name and annotations are hashed as a set, so
// neither declaration order nor annotation order affects the result.
func (s *Snapshot) Hash() uint64 {
	h := murmur3.New64()

	names := make([]string, 0, len(s.Models))
	byName := make(map[string]*Model, len(s.Models))
	for i := range s.Models {
		names = append(names, s.Models[i].Name)
		byName[s.Models[i].Name] = &s.Models[i]
	}
	sort.Strings(names)

	for _, name := range names {
		m := byName[name]
		fmt.Fprintf(h, "model\x00%s\x00", m.Name)

		fieldNames := make([]string, 0, len(m.Fields))
		fieldByName := make(map[string]*Field, len(m.Fields))
		for i := range m.Fields {
			fieldNames = append(fieldNames, m.Fields[i].Name)
			fieldByName[m.Fields[i].Name] = &m.Fields[i]
		}
		sort.Strings(fieldNames)

		for _, fn := range fieldNames {
			f := fieldByName[fn]
			fmt.Fprintf(h, "field\x00%s\x00%s\x00", f.Name, f.Type)

			keys := make([]string, 0, len(f.Annotations))
			for _, a := range f.Annotations {
				keys = append(keys, annotationKey(a))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(h, "annotation\x00%s\x00", k)
			}
		}
	}

	return h.Sum64()
}

// annotationKey renders an annotation to a canonical string so the set of
// annotations on a field can be hashed independent of ordering.
func annotationKey(a Annotation) string {
	switch a.Kind {
	case AnnotationMaxLength:
		return fmt.Sprintf("%s=%d", a.Kind, a.MaxLength)
	case AnnotationChoices:
		return fmt.Sprintf("%s=%s", a.Kind, strings.Join(a.Choices, "\x00"))
	case AnnotationDefaultValue, AnnotationConstructValue:
		if a.Value == nil {
			return string(a.Kind)
		}
		return fmt.Sprintf("%s=%s:%s", a.Kind, a.Value.Kind, a.Value.String())
	case AnnotationIndex:
		idx := Index{Priority: DefaultIndexPriority}
		if a.Index != nil {
			idx = *a.Index
		}
		if idx.Priority == 0 {
			idx.Priority = DefaultIndexPriority
		}
		return fmt.Sprintf("%s=%s:%d", a.Kind, idx.Name, idx.Priority)
	case AnnotationValidator:
		return fmt.Sprintf("%s=%s", a.Kind, a.Validator)
	default:
		return string(a.Kind)
	}
}
