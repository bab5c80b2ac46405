package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidate delimiters, in tie-break order
var csvDelimiters = []rune{',', ';', '\t', '|'}

// ParseCSV reads a header-first CSV document. The delimiter is sniffed from
// the header line.
func ParseCSV(r io.Reader, d *diag.Collector) ([]models.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return gridToRows(grid, false, d), nil
}

// sniffDelimiter counts candidate delimiters outside quotes on the first line
// and picks the most frequent one. Comma wins ties and empty input.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexAny(data, "\r\n"); idx >= 0 {
		line = data[:idx]
	}

	counts := make(map[rune]int, len(csvDelimiters))
	inQuotes := false
	for _, c := range string(line) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, delim := range csvDelimiters {
			if c == delim {
				counts[delim]++
			}
		}
	}

	best := ','
	for _, delim := range csvDelimiters {
		if counts[delim] > counts[best] {
			best = delim
		}
	}
	return best
}
