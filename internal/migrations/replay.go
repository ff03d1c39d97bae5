package migrations

import (
	"github.com/koba/db-migrate/internal/schema"
)

// Replay reconstructs the schema implied by an ordered migration sequence
// by applying every operation in order, starting from an empty snapshot.
// The result is the baseline the next diff runs against.
func Replay(ordered []*Migration) schema.Snapshot {
	var snap schema.Snapshot

	for _, m := range ordered {
		for _, op := range m.Operations {
			switch o := op.(type) {
			case CreateModel:
				snap.Models = append(snap.Models, schema.Model{
					Name:   o.Name,
					Fields: append([]schema.Field(nil), o.Fields...),
				})
			case DeleteModel:
				for i := range snap.Models {
					if snap.Models[i].Name == o.Name {
						snap.Models = append(snap.Models[:i], snap.Models[i+1:]...)
						break
					}
				}
			case AddField:
				if model := snap.ModelByName(o.Model); model != nil {
					model.Fields = append(model.Fields, o.Field)
				}
			case DeleteField:
				if model := snap.ModelByName(o.Model); model != nil {
					for i := range model.Fields {
						if model.Fields[i].Name == o.Field {
							model.Fields = append(model.Fields[:i], model.Fields[i+1:]...)
							break
						}
					}
				}
			}
		}
	}

	return snap
}
