package migrations

// Validate checks the full record set for structural consistency. It is a
// pure function: no state survives between calls. The first violated
// invariant aborts the whole run; there is no partial report and no repair.
//
// Checks run in a fixed order: duplicate ids, dangling references,
// branching, cycles, initial-record rules.
func Validate(records []*Migration) error {
	lookup := make(map[string]*Migration, len(records))
	for _, m := range records {
		if _, exists := lookup[m.ID]; exists {
			return &Error{Kind: ErrDuplicateID, ID: m.ID}
		}
		lookup[m.ID] = m
	}

	for _, m := range records {
		if m.Dependency != "" {
			if _, ok := lookup[m.Dependency]; !ok {
				return &Error{Kind: ErrDanglingReference, ID: m.ID, Message: "dependency " + m.Dependency + " does not exist"}
			}
		}
		for _, r := range m.Replaces {
			if _, ok := lookup[r]; !ok {
				return &Error{Kind: ErrDanglingReference, ID: m.ID, Message: "replaced migration " + r + " does not exist"}
			}
		}
	}

	if err := checkBranching(records); err != nil {
		return err
	}
	if err := checkCycles(records, lookup); err != nil {
		return err
	}
	return checkInitial(records, lookup)
}

// checkBranching verifies that no migration has two successors. Two records
// sharing a dependency are not a branch when one of them replaces the
// other: a replace chain collapses apparent siblings into one logical
// successor.
func checkBranching(records []*Migration) error {
	groups := make(map[string][]*Migration)
	for _, m := range records {
		if m.Dependency == "" {
			continue
		}
		groups[m.Dependency] = append(groups[m.Dependency], m)
	}

	for dep, group := range groups {
		if len(group) < 2 {
			continue
		}

		replaced := make(map[string]bool)
		for _, m := range group {
			for _, r := range m.Replaces {
				replaced[r] = true
			}
		}

		var remaining []string
		for _, m := range group {
			if !replaced[m.ID] {
				remaining = append(remaining, m.ID)
			}
		}
		if len(remaining) > 1 {
			return &Error{
				Kind:    ErrBranchingDetected,
				ID:      dep,
				Message: "multiple successors: " + joinIDs(remaining),
			}
		}
	}
	return nil
}

// checkCycles runs a path-tracked depth-first walk along the Replaces edges
// and, independently, along the Dependency edges. Revisiting a node on the
// current path is a cycle.
func checkCycles(records []*Migration, lookup map[string]*Migration) error {
	replacesEdges := func(m *Migration) []string { return m.Replaces }
	dependencyEdges := func(m *Migration) []string {
		if m.Dependency == "" {
			return nil
		}
		return []string{m.Dependency}
	}

	for _, m := range records {
		if len(m.Replaces) > 0 {
			if err := walk(m, lookup, replacesEdges, nil, map[string]bool{}); err != nil {
				return err
			}
		}
	}
	for _, m := range records {
		if m.Dependency != "" {
			if err := walk(m, lookup, dependencyEdges, nil, map[string]bool{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func walk(m *Migration, lookup map[string]*Migration, edges func(*Migration) []string, path []string, onPath map[string]bool) error {
	if onPath[m.ID] {
		return &Error{Kind: ErrCycleDetected, Path: append(path, m.ID)}
	}
	onPath[m.ID] = true
	path = append(path, m.ID)

	for _, next := range edges(m) {
		if err := walk(lookup[next], lookup, edges, path, onPath); err != nil {
			return err
		}
	}

	delete(onPath, m.ID)
	return nil
}

// checkInitial enforces the single-logical-root rules. Multiple initial
// records are tolerated only when they form one replace chain: every
// initial with replaces must replace exactly one initial, and exactly one
// initial must be the end of the chain.
func checkInitial(records []*Migration, lookup map[string]*Migration) error {
	var initials []*Migration
	for _, m := range records {
		if m.Initial {
			initials = append(initials, m)
		}
	}
	if len(records) > 0 && len(initials) == 0 {
		return &Error{Kind: ErrNoInitialMigration}
	}

	for _, m := range records {
		if m.Initial {
			if m.Dependency != "" {
				return &Error{Kind: ErrInvalidInitialMigration, ID: m.ID, Message: "initial migration must not have a dependency"}
			}
			continue
		}
		if m.Dependency == "" {
			return &Error{Kind: ErrMissingDependency, ID: m.ID, Message: "non-initial migration without dependency"}
		}
	}
	if len(initials) <= 1 {
		return nil
	}

	roots := 0
	for _, m := range initials {
		if len(m.Replaces) == 0 {
			roots++
			continue
		}
		initialPredecessors := 0
		for _, r := range m.Replaces {
			if lookup[r].Initial {
				initialPredecessors++
			}
		}
		if initialPredecessors != 1 {
			return &Error{
				Kind:    ErrAmbiguousInitialMigration,
				ID:      m.ID,
				Message: "initial migration must replace exactly one initial migration",
			}
		}
	}
	if roots != 1 {
		return &Error{Kind: ErrMultipleInitialMigrations, Message: "independent initial migrations never converge"}
	}
	return nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
