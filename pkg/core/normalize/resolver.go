package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"portfolio_ingest/pkg/models"
)

// leadingNumber matches the numeric prefix of a cell such as "50 MW" or "12.5%".
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber reads a float from a cell. Strings contribute their leading
// numeric prefix; booleans, empty cells and non-finite values do not parse.
func ParseNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		m := leadingNumber.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// cellString renders a scalar cell as text; nil and blank strings are empty.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// resolver looks canonical fields up in one row.
type resolver struct {
	row     models.RawRow
	exclude map[string]bool // lower-cased headers never used for string fields
}

func newResolver(row models.RawRow, exclude ...string) resolver {
	ex := make(map[string]bool, len(exclude))
	for _, h := range exclude {
		ex[strings.ToLower(h)] = true
	}
	return resolver{row: row, exclude: ex}
}

// String returns the value of the first candidate whose header holds a
// non-empty value. An exact (case-insensitive) header match is preferred
// over a substring match for the same candidate.
func (r resolver) String(candidates []string) (string, bool) {
	for _, term := range candidates {
		if h, ok := r.exactHeader(term); ok {
			if s := cellString(r.row.Values[h]); s != "" {
				return s, true
			}
		}
		if h, ok := r.containingHeader(term); ok {
			if s := cellString(r.row.Values[h]); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Number scans candidates in order and returns the first header value that
// parses as a float.
func (r resolver) Number(candidates []string) (float64, string, bool) {
	for _, term := range candidates {
		h, ok := r.row.FindHeader(term)
		if !ok {
			continue
		}
		if f, ok := ParseNumber(r.row.Values[h]); ok {
			return f, h, true
		}
	}
	return 0, "", false
}

// Has reports whether any candidate header holds a non-empty value.
func (r resolver) Has(candidates []string) bool {
	for _, term := range candidates {
		if h, ok := r.row.FindHeader(term); ok && cellString(r.row.Values[h]) != "" {
			return true
		}
	}
	return false
}

// Header returns the first header containing any candidate term.
func (r resolver) Header(candidates []string) (string, bool) {
	for _, term := range candidates {
		if h, ok := r.row.FindHeader(term); ok {
			return h, true
		}
	}
	return "", false
}

// Exact returns the value of the header equal to name, ignoring case.
func (r resolver) Exact(name string) (interface{}, bool) {
	for _, h := range r.row.Headers {
		if strings.EqualFold(h, name) {
			return r.row.Values[h], true
		}
	}
	return nil, false
}

func (r resolver) exactHeader(term string) (string, bool) {
	for _, h := range r.row.Headers {
		if strings.EqualFold(h, term) && !r.exclude[strings.ToLower(h)] {
			return h, true
		}
	}
	return "", false
}

func (r resolver) containingHeader(term string) (string, bool) {
	term = strings.ToLower(term)
	for _, h := range r.row.Headers {
		lh := strings.ToLower(h)
		if strings.Contains(lh, term) && !r.exclude[lh] {
			return h, true
		}
	}
	return "", false
}
