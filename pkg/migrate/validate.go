package migrate

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"regexp"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in source for a goose-compatible name,
// a unique version and both Up and Down sections.
func Validate(source fs.FS) error {
	names, err := fs.Glob(source, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	versions := make(map[string]string, len(names))
	for _, name := range names {
		match := migrationName.FindStringSubmatch(path.Base(name))
		if match == nil {
			return fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_case.sql", name)
		}
		if other, dup := versions[match[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, match[1], other)
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(source, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !bytes.Contains(body, []byte(marker)) {
				return fmt.Errorf("%s: missing %q", name, marker)
			}
		}
	}
	return nil
}
