// Package diag collects field-level warnings that the pipeline absorbs
// instead of failing. A nil *Collector is valid and records nothing, so
// callers that do not care simply pass nil.
package diag

import (
	"fmt"
	"sync"

	"portfolio_ingest/pkg/models"
)

// Stage names used in warnings.
const (
	StageParse     = "parse"
	StageClassify  = "classify"
	StageProjects  = "projects"
	StageFinancial = "financials"
	StageSynthesis = "synthesis"
	StageKPI       = "kpi"
)

// Collector accumulates warnings for one ingestion run.
type Collector struct {
	mu       sync.Mutex
	warnings []models.Warning
	limit    int
	dropped  int
}

// NewCollector creates a collector. limit caps the number of stored warnings
// (0 means unlimited); warnings past the cap are counted but not stored.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// Add records a warning.
func (c *Collector) Add(stage string, row int, field, format string, args ...interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit > 0 && len(c.warnings) >= c.limit {
		c.dropped++
		return
	}
	c.warnings = append(c.warnings, models.Warning{
		Stage:   stage,
		Row:     row,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Enabled reports whether warnings are being recorded.
func (c *Collector) Enabled() bool {
	return c != nil
}

// Warnings returns a copy of the stored warnings. When the cap was hit, a
// final summary warning reports how many were dropped.
func (c *Collector) Warnings() []models.Warning {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Warning, len(c.warnings), len(c.warnings)+1)
	copy(out, c.warnings)
	if c.dropped > 0 {
		out = append(out, models.Warning{
			Stage:   "diagnostics",
			Message: fmt.Sprintf("%d further warnings dropped", c.dropped),
		})
	}
	return out
}

// Len is the number of warnings recorded, including dropped ones.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings) + c.dropped
}
