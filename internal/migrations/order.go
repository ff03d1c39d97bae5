package migrations

// Clean returns the active records: every record that appears in some other
// record's Replaces set is dropped. The replaced files remain on disk; this
// is a logical deletion only.
func Clean(records []*Migration) []*Migration {
	active := make([]*Migration, 0, len(records))
	for _, m := range records {
		if m.Active(records) {
			active = append(active, m)
		}
	}
	return active
}

// Order validates the record set and produces the single linear sequence of
// active migrations, starting at the active initial record and following
// Dependency back-references. An active record the chain never reaches is
// an orphan and aborts the run; silently dropping it would yield an
// incomplete baseline and a wrong diff.
func Order(records []*Migration) ([]*Migration, error) {
	if err := Validate(records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	active := Clean(records)

	var current *Migration
	for _, m := range active {
		if m.Initial {
			current = m
			break
		}
	}
	if current == nil {
		return nil, &Error{Kind: ErrNoInitialMigration, Message: "no active initial migration"}
	}

	ordered := []*Migration{current}
	for {
		var next *Migration
		for _, m := range active {
			if m.Dependency == current.ID {
				next = m
				break
			}
		}
		if next == nil {
			break
		}
		ordered = append(ordered, next)
		current = next
	}

	if len(ordered) != len(active) {
		consumed := make(map[string]bool, len(ordered))
		for _, m := range ordered {
			consumed[m.ID] = true
		}
		var orphans []string
		for _, m := range active {
			if !consumed[m.ID] {
				orphans = append(orphans, m.ID)
			}
		}
		return nil, &Error{
			Kind:    ErrOrphanedMigration,
			Message: "active migrations unreachable from the initial migration: " + joinIDs(orphans),
		}
	}

	return ordered, nil
}
