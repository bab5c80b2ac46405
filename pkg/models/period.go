package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Period is one entry of a financial series' year axis. Numeric periods
// (2025, "2026") sort by value; anything else is kept as a text label.
type Period struct {
	Value   float64
	Label   string
	Numeric bool
}

// NumericPeriod builds a numeric period.
func NumericPeriod(v float64) Period {
	return Period{Value: v, Numeric: true}
}

// LabelPeriod builds a text period.
func LabelPeriod(label string) Period {
	return Period{Label: label}
}

// PeriodFromValue coerces a raw cell into a Period.
func PeriodFromValue(v interface{}) Period {
	switch t := v.(type) {
	case nil:
		return LabelPeriod("")
	case float64:
		return NumericPeriod(t)
	case int:
		return NumericPeriod(float64(t))
	case bool:
		return LabelPeriod(strconv.FormatBool(t))
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NumericPeriod(f)
		}
		return LabelPeriod(s)
	default:
		return LabelPeriod(fmt.Sprintf("%v", t))
	}
}

// Less orders numeric periods before labels, numbers by value, labels lexically.
func (p Period) Less(o Period) bool {
	if p.Numeric != o.Numeric {
		return p.Numeric
	}
	if p.Numeric {
		return p.Value < o.Value
	}
	return p.Label < o.Label
}

func (p Period) String() string {
	if p.Numeric {
		return strconv.FormatFloat(p.Value, 'f', -1, 64)
	}
	return p.Label
}

// MarshalJSON writes numeric periods as JSON numbers and labels as strings.
func (p Period) MarshalJSON() ([]byte, error) {
	if p.Numeric {
		return json.Marshal(p.Value)
	}
	return json.Marshal(p.Label)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (p *Period) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = LabelPeriod("")
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*p = NumericPeriod(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("period must be a number or string: %w", err)
	}
	*p = LabelPeriod(s)
	return nil
}
