package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// Dialect names a migration set, which is also its directory.
type Dialect string

// Supported dialects.
const (
	Postgres   Dialect = "postgres"
	Clickhouse Dialect = "clickhouse"
)

// Migration is one numbered SQL file, e.g. 002_transactions.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the embedded migrations of dialect ordered by version.
// File names must start with a unique positive version followed by '_'.
func Load(dialect Dialect) ([]Migration, error) {
	return load(files, dialect)
}

func load(fsys fs.FS, dialect Dialect) ([]Migration, error) {
	names, err := fs.Glob(fsys, path.Join(string(dialect), "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dialect, err)
	}

	out := make([]Migration, 0, len(names))
	seen := make(map[int]string, len(names))
	for _, name := range names {
		base := path.Base(name)
		version, err := versionOf(base)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, base, version)
		}
		seen[version] = base

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		out = append(out, Migration{
			Version: version,
			Name:    strings.TrimSuffix(base, ".sql"),
			SQL:     string(data),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func versionOf(file string) (int, error) {
	prefix, _, ok := strings.Cut(file, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: name must be <version>_<name>.sql", file)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("migration %s: invalid version %q", file, prefix)
	}
	return v, nil
}
