package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// emptyHeader names columns whose header cell is blank.
const emptyHeader = "__EMPTY"

var plainNumber = regexp.MustCompile(`^-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?$`)

// ParseCell trims a raw cell and converts it to float64, bool or nil where it
// unambiguously is one. Everything else stays a string.
func ParseCell(raw string) interface{} {
	s := strings.TrimSpace(raw)
	switch s {
	case "":
		return nil
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	if plainNumber.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// buildHeaders trims header cells, names blank ones and suffixes duplicates
// with _1, _2, ...
func buildHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	used := make(map[string]bool, len(cells))
	next := make(map[string]int)
	for i, c := range cells {
		h := strings.TrimSpace(c)
		if h == "" {
			h = emptyHeader
		}
		if used[h] {
			base := h
			for used[h] {
				next[base]++
				h = fmt.Sprintf("%s_%d", base, next[base])
			}
		}
		used[h] = true
		headers[i] = h
	}
	return headers
}

// gridToRows converts a header-first string grid into rows.
// omitEmpty drops blank cells from a row (spreadsheet semantics); otherwise
// blank cells are kept as nil (CSV semantics). Rows with no value at all are
// skipped either way.
func gridToRows(grid [][]string, omitEmpty bool, d *diag.Collector) []models.RawRow {
	if len(grid) == 0 {
		return []models.RawRow{}
	}

	headers := buildHeaders(grid[0])
	rows := make([]models.RawRow, 0, len(grid)-1)

	for i, record := range grid[1:] {
		if isBlankRecord(record) {
			continue
		}
		if len(record) > len(headers) {
			d.Add(diag.StageParse, i+1, "", "row has %d fields, header has %d; extra fields dropped", len(record), len(headers))
		}

		row := models.NewRawRow(len(headers))
		for j, h := range headers {
			var raw string
			if j < len(record) {
				raw = record[j]
			}
			v := ParseCell(raw)
			if v == nil && omitEmpty {
				continue
			}
			row.Set(h, v)
		}
		rows = append(rows, row)
	}
	return rows
}

func isBlankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
