package migrations

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// fileNamePattern matches the migration files this tool manages. Anything
// else in the directory is somebody else's business.
var fileNamePattern = regexp.MustCompile(`^[0-9]{4}_\w+\.toml$`)

// ScanDir reads every migration file in dir, in ascending order of the
// 4-digit numeric prefix. Files not matching the naming pattern are skipped
// and reported back as warnings; the logical order of the result is still
// derived from the dependency graph, not from filenames.
func ScanDir(dir string) ([]*Migration, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, ioError(dir, "failed to read migration directory", err)
	}

	var names []string
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !fileNamePattern.MatchString(entry.Name()) {
			warnings = append(warnings, "ignoring "+filepath.Join(dir, entry.Name())+": name does not match NNNN_<label>.toml")
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Slice(names, func(i, j int) bool {
		return numericPrefix(names[i]) < numericPrefix(names[j])
	})

	records := make([]*Migration, 0, len(names))
	for _, name := range names {
		m, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, warnings, err
		}
		records = append(records, m)
	}
	return records, warnings, nil
}

// LatestSequence returns the highest 4-digit filename prefix present in
// dir, or 0 when the directory holds no migrations. Used to detect a writer
// that raced between read and write.
func LatestSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, ioError(dir, "failed to read migration directory", err)
	}
	latest := 0
	for _, entry := range entries {
		if entry.IsDir() || !fileNamePattern.MatchString(entry.Name()) {
			continue
		}
		if n := numericPrefix(entry.Name()); n > latest {
			latest = n
		}
	}
	return latest, nil
}

func numericPrefix(name string) int {
	n, err := strconv.Atoi(name[:4])
	if err != nil {
		return 0
	}
	return n
}
