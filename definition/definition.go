// Package definition loads migration definitions from YAML files, and creates
// new ones.
//
// Each file declares a single migration. Its ID is the file name without the
// extension, unless the file sets one explicitly:
//
//	forward:
//	  kind: add_column
//	  table: users
//	  column: city
//	  type: VARCHAR(255)
//	  nullable: true
//	  after: email
//	backward:
//	  kind: drop_column
//	  table: users
//	  column: city
//
// A missing backward operation, or one with kind "none", marks the migration
// as irreversible.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"

	"go.hackfix.me/ledger/ledger"
)

// IDTimeFormat is the layout of the timestamp prefix of migration IDs.
const IDTimeFormat = "2006_01_02_150405"

var slugRx = regexp.MustCompile(`[^a-z0-9]+`)

type file struct {
	ID       string           `yaml:"id,omitempty"`
	Forward  ledger.Operation `yaml:"forward"`
	Backward ledger.Operation `yaml:"backward"`
}

// Load reads all migration definitions under dir, including subdirectories,
// and returns them sorted by ID. Two definitions with the same ID are
// rejected with a ledger.DuplicateIDError.
func Load(fs vfs.FileSystem, dir string) ([]*ledger.Record, error) {
	info, err := fs.Stat(dir)
	if err != nil {
		if vfs.IsErrNotExist(err) {
			return nil, fmt.Errorf("migrations directory '%s' doesn't exist", dir)
		}
		return nil, fmt.Errorf("failed reading migrations directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations path '%s' is not a directory", dir)
	}

	paths, err := findFiles(fs, dir)
	if err != nil {
		return nil, err
	}

	records := make([]*ledger.Record, 0, len(paths))
	sources := make(map[string]string, len(paths))
	for _, path := range paths {
		rec, err := readFile(fs, path)
		if err != nil {
			return nil, err
		}
		if src, ok := sources[rec.ID]; ok {
			return nil, ledger.DuplicateIDError{ID: rec.ID, Sources: []string{src, path}}
		}
		sources[rec.ID] = path
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b *ledger.Record) int {
		return strings.Compare(a.ID, b.ID)
	})

	return records, nil
}

// Scaffold writes a new definition file for the forward operation op to dir,
// and returns the created record. The ID is derived from the given time and
// name. The backward operation is derived from op where possible, otherwise
// it's left as a no-op for the author to fill in.
func Scaffold(
	fs vfs.FileSystem, dir string, now time.Time, name string, op ledger.Operation,
) (*ledger.Record, error) {
	slug := Slug(name)
	if slug == "" {
		return nil, fmt.Errorf("invalid migration name '%s'", name)
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if op.IsNoop() {
		return nil, errors.New("forward operation is required")
	}

	backward, ok := ledger.Invert(op)
	if !ok {
		backward = ledger.Operation{Kind: ledger.OpNone}
	}

	rec := &ledger.Record{
		ID:       fmt.Sprintf("%s_%s", now.UTC().Format(IDTimeFormat), slug),
		Forward:  op,
		Backward: backward,
	}
	rec.Source = filepath.Join(dir, rec.ID+".yaml")

	exists, err := vfs.Exists(fs, rec.Source)
	if err != nil {
		return nil, fmt.Errorf("failed checking migration file: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("migration file '%s' already exists", rec.Source)
	}

	var buf bytes.Buffer
	if !ok {
		fmt.Fprintf(&buf, "# The backward operation of %s can't be derived automatically.\n"+
			"# Declare it below, or leave it as a no-op to mark the migration as irreversible.\n", op.Kind)
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err = enc.Encode(file{Forward: rec.Forward, Backward: rec.Backward}); err != nil {
		return nil, fmt.Errorf("failed serializing migration: %w", err)
	}
	if err = enc.Close(); err != nil {
		return nil, fmt.Errorf("failed serializing migration: %w", err)
	}

	if err = fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating migrations directory: %w", err)
	}
	if err = vfs.WriteFile(fs, rec.Source, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed writing migration file: %w", err)
	}

	return rec, nil
}

// Slug converts a free-form migration name into the form used in IDs, e.g.
// "Add city to users table" becomes "add_city_to_users_table".
func Slug(name string) string {
	return strings.Trim(slugRx.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

func findFiles(fs vfs.FileSystem, dir string) ([]string, error) {
	entries, err := vfs.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed reading migrations directory '%s': %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			sub, err := findFiles(fs, path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)

	return paths, nil
}

func readFile(fs vfs.FileSystem, path string) (*ledger.Record, error) {
	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed reading migration file: %w", err)
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed parsing migration file '%s': %w", path, err)
	}

	id := f.ID
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return &ledger.Record{
		ID:       id,
		Forward:  f.Forward,
		Backward: f.Backward,
		Source:   path,
	}, nil
}
