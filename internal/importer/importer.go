// Package importer reads expense rows from CSV files and turns them into
// drafts ready to submit.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spend/internal/categories"
	"github.com/cleared-dev/spend/internal/model"
)

// Row is one expense read from a file. Amount is always positive.
type Row struct {
	Line        int
	Date        model.Date
	Amount      decimal.Decimal
	Category    string // category name or ID, "" when the file has none
	Description string
}

// Parser converts a CSV file into Rows.
type Parser interface {
	Parse(r io.Reader) ([]Row, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&SpendParser{})
	r.Register(&ChaseParser{})
	return r
}

// InboxDir is the import inbox inside the config directory.
const InboxDir = "import"

// processedDir receives files once they are imported.
const processedDir = "import/processed"

// Scan returns CSV files in <dir>/import/.
func Scan(dir string) ([]FileInfo, error) {
	inbox := filepath.Join(dir, InboxDir)
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(inbox, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, InboxDir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Drafts resolves each row's category and validates the result. Rows
// without a category use fallback. Every invalid row is reported.
func Drafts(rows []Row, cats *categories.Service, fallback string) ([]model.Draft, error) {
	var errs []error
	drafts := make([]model.Draft, 0, len(rows))
	for _, row := range rows {
		name := row.Category
		if name == "" {
			name = fallback
		}
		cat, err := cats.Resolve(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", row.Line, err))
			continue
		}
		d := model.Draft{
			Amount:      row.Amount,
			Date:        row.Date,
			Category:    cat.ID,
			Description: row.Description,
		}
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", row.Line, err))
			continue
		}
		drafts = append(drafts, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return drafts, nil
}
