// Package ingest turns uploaded CSV / XLSX / XLS files into ordered row
// records keyed by the header row.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"portfolio_ingest/pkg/core/diag"
	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/models"
)

// Format identifiers, as taken from the file extension.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

// SupportedFormats lists the accepted extensions in display order.
var SupportedFormats = []string{FormatCSV, FormatXLSX, FormatXLS}

// Adapter parses one file format into rows.
type Adapter func(r io.Reader, d *diag.Collector) ([]models.RawRow, error)

// FileParser dispatches a file to the adapter registered for its extension.
type FileParser struct {
	adapters map[string]Adapter
}

// NewFileParser creates a parser with the CSV, XLSX and XLS adapters.
func NewFileParser() *FileParser {
	return &FileParser{
		adapters: map[string]Adapter{
			FormatCSV:  ParseCSV,
			FormatXLSX: ParseXLSX,
			FormatXLS:  ParseXLS,
		},
	}
}

// Extension returns the lower-cased text after the last dot of name. A name
// without a dot is returned whole.
func Extension(name string) string {
	base := filepath.Base(name)
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		return strings.ToLower(base[idx+1:])
	}
	return strings.ToLower(base)
}

// Supports reports whether an adapter exists for the extension.
func (p *FileParser) Supports(ext string) bool {
	_, ok := p.adapters[strings.ToLower(ext)]
	return ok
}

// Parse reads the file named name from r. Unknown extensions fail before any
// bytes are read.
func (p *FileParser) Parse(name string, r io.Reader, d *diag.Collector) ([]models.RawRow, error) {
	ext := Extension(name)
	adapter, ok := p.adapters[ext]
	if !ok {
		return nil, apperrors.NewUnsupportedFormatError(ext, SupportedFormats)
	}

	rows, err := adapter(r, d)
	if err != nil {
		if _, coded := apperrors.As(err); coded {
			return nil, err
		}
		return nil, apperrors.NewParseFailedError(ext, err)
	}
	return rows, nil
}

// ParseFile opens path and parses it.
func (p *FileParser) ParseFile(path string, d *diag.Collector) ([]models.RawRow, error) {
	ext := Extension(path)
	if !p.Supports(ext) {
		return nil, apperrors.NewUnsupportedFormatError(ext, SupportedFormats)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return p.Parse(path, f, d)
}
