package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"
)

const upTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}

BEGIN;

-- UP statements

COMMIT;
`

const downTemplate = `-- Migration: {{.Name}} (rollback)
-- Created: {{.Timestamp}}

BEGIN;

-- DOWN statements

COMMIT;
`

var (
	upTmpl   = template.Must(template.New("up").Parse(upTemplate))
	downTmpl = template.Must(template.New("down").Parse(downTemplate))
)

// MigrationFile describes a created up/down pair
type MigrationFile struct {
	Version   string
	Name      string
	Timestamp string
	UpPath    string
	DownPath  string
}

// Creator writes new migration pairs into a directory
type Creator struct {
	dir string
	now func() time.Time
}

// NewCreator returns a Creator for dir
func NewCreator(dir string) *Creator {
	return &Creator{dir: dir, now: time.Now}
}

// Create writes {version}_{name}.up.sql and .down.sql, where version is a
// UTC timestamp (YYYYMMDDHHMMSS) so files sort in creation order.
func (c *Creator) Create(name string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := c.now().UTC()
	version := now.Format("20060102150405")
	base := filepath.Join(c.dir, version+"_"+slug)

	mf := &MigrationFile{
		Version:   version,
		Name:      name,
		Timestamp: now.Format(time.RFC3339),
		UpPath:    base + ".up.sql",
		DownPath:  base + ".down.sql",
	}

	if err := writeTemplate(mf.UpPath, upTmpl, mf); err != nil {
		return nil, err
	}
	if err := writeTemplate(mf.DownPath, downTmpl, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// List returns the base names of the migrations in the directory, in order
func (c *Creator) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if base, ok := strings.CutSuffix(entry.Name(), ".up.sql"); ok && !entry.IsDir() {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}

func writeTemplate(path string, tmpl *template.Template, data *MigrationFile) error {
	// O_EXCL: never overwrite an existing migration
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and joins its alphanumeric runs with underscores
func sanitizeName(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	return strings.Join(words, "_")
}
