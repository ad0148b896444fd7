package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	migrationName = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)
	unsafeChars   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Pair is an up/down migration pair
type Pair struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

const upHeader = "-- %s\n\n"
const downHeader = "-- rollback %s\n\n"

// CreateMigration writes the next sequential migration pair into dir
func CreateMigration(dir, name string) (*Pair, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	p := &Pair{
		Version:  next,
		Name:     slug,
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}
	if err := os.WriteFile(p.UpPath, []byte(fmt.Sprintf(upHeader, slug)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(p.DownPath, []byte(fmt.Sprintf(downHeader, slug)), 0o644); err != nil {
		_ = os.Remove(p.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return p, nil
}

// ListMigrations returns the migrations at the root of fsys ordered by
// version. A missing directory yields none.
func ListMigrations(fsys fs.FS) ([]Pair, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var pairs []Pair
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", entry.Name(), err)
		}
		pairs = append(pairs, Pair{
			Version:  uint(version),
			Name:     match[2],
			UpPath:   entry.Name(),
			DownPath: strings.TrimSuffix(entry.Name(), ".up.sql") + ".down.sql",
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Version < pairs[j].Version })
	return pairs, nil
}

// Embedded lists the migrations compiled into the binary
func Embedded() ([]Pair, error) {
	sub, err := fs.Sub(migrationsFS, SourceDir)
	if err != nil {
		return nil, err
	}
	return ListMigrations(sub)
}

// sanitizeName lowercases name and joins its alphanumeric runs with underscores
func sanitizeName(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
