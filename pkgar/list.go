package pkgar

import "github.com/provide-io/pkgar/pkgcore"

// List returns every entry's relative path, in entry-table order,
// rejecting the archive if any path fails the same relative-path check
// the extractor enforces. It never touches the filesystem, grounded on
// bin.rs's list().
func List(src pkgcore.Source) ([]string, error) {
	entries := src.Entries()
	paths := make([]string, 0, len(entries))
	for i := range entries {
		relative := entries[i].PathString()
		if err := pkgcore.CheckRelativePath(relative); err != nil {
			return nil, err
		}
		paths = append(paths, relative)
	}
	return paths, nil
}
