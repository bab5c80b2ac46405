package models

import (
	"strings"
	"time"
)

// DataStructureKind is the shape inferred for an uploaded dataset.
type DataStructureKind string

const (
	StructureProjects   DataStructureKind = "projects"
	StructureFinancials DataStructureKind = "financials"
	StructureMixed      DataStructureKind = "mixed"
	StructureUnknown    DataStructureKind = "unknown"
)

// RawRow is one parsed data row. Headers keeps the column order of the source
// file; Values holds string, float64, bool or nil cells keyed by header.
type RawRow struct {
	Headers []string
	Values  map[string]interface{}
}

// NewRawRow creates an empty row with capacity for n columns.
func NewRawRow(n int) RawRow {
	return RawRow{
		Headers: make([]string, 0, n),
		Values:  make(map[string]interface{}, n),
	}
}

// Set appends a column, or overwrites its value if the header already exists.
func (r *RawRow) Set(header string, value interface{}) {
	if _, exists := r.Values[header]; !exists {
		r.Headers = append(r.Headers, header)
	}
	r.Values[header] = value
}

// Get returns the value stored under the exact header.
func (r RawRow) Get(header string) (interface{}, bool) {
	v, ok := r.Values[header]
	return v, ok
}

// FindHeader returns the first header (in column order) whose lower-cased form
// contains term.
func (r RawRow) FindHeader(term string) (string, bool) {
	term = strings.ToLower(term)
	for _, h := range r.Headers {
		if strings.Contains(strings.ToLower(h), term) {
			return h, true
		}
	}
	return "", false
}

// Len is the number of columns in the row.
func (r RawRow) Len() int {
	return len(r.Headers)
}

// Project is the canonical project record.
type Project struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Country        string     `json:"country"`
	Status         string     `json:"status"`
	Capacity       float64    `json:"capacity"` // MW
	InvestmentCost float64    `json:"investmentCost"`
	Equity         float64    `json:"equity"`
	Revenue        float64    `json:"revenue"`
	Ebitda         float64    `json:"ebitda"`
	Profit         float64    `json:"profit"`
	YieldOnCost    float64    `json:"yieldOnCost"` // fraction
	IRR            float64    `json:"irr"`         // fraction
	CashReturn     float64    `json:"cashReturn"`
	Location       [2]float64 `json:"location"` // [lng, lat]
}

// FinancialProjectionSeries holds index-aligned yearly series sorted by period.
type FinancialProjectionSeries struct {
	Years          []Period  `json:"years"`
	Revenues       []float64 `json:"revenues"`
	OperationCosts []float64 `json:"operationCosts"`
	Ebitda         []float64 `json:"ebitda"`
	Profit         []float64 `json:"profit"`
	CashFlow       []float64 `json:"cashFlow"`
}

// NewFinancialProjectionSeries allocates a series with capacity for n periods.
// All slices are non-nil so the JSON form always carries arrays.
func NewFinancialProjectionSeries(n int) FinancialProjectionSeries {
	return FinancialProjectionSeries{
		Years:          make([]Period, 0, n),
		Revenues:       make([]float64, 0, n),
		OperationCosts: make([]float64, 0, n),
		Ebitda:         make([]float64, 0, n),
		Profit:         make([]float64, 0, n),
		CashFlow:       make([]float64, 0, n),
	}
}

// Append adds one period to every series.
func (s *FinancialProjectionSeries) Append(year Period, revenue, cost, ebitda, profit, cashFlow float64) {
	s.Years = append(s.Years, year)
	s.Revenues = append(s.Revenues, revenue)
	s.OperationCosts = append(s.OperationCosts, cost)
	s.Ebitda = append(s.Ebitda, ebitda)
	s.Profit = append(s.Profit, profit)
	s.CashFlow = append(s.CashFlow, cashFlow)
}

// Len is the number of periods.
func (s FinancialProjectionSeries) Len() int {
	return len(s.Years)
}

// IsAligned reports whether all series have the same length as Years.
func (s FinancialProjectionSeries) IsAligned() bool {
	n := len(s.Years)
	return len(s.Revenues) == n && len(s.OperationCosts) == n && len(s.Ebitda) == n &&
		len(s.Profit) == n && len(s.CashFlow) == n
}

// CountryTotal aggregates projects sharing a country.
type CountryTotal struct {
	Sites      int     `json:"sites"`
	MW         float64 `json:"mw"`
	Investment float64 `json:"investment"`
	Equity     float64 `json:"equity"`
	Revenue    float64 `json:"revenue"`
	Ebitda     float64 `json:"ebitda"`
	Profit     float64 `json:"profit"`
}

// ProjectTypeTotal aggregates projects sharing a technology type.
type ProjectTypeTotal struct {
	Count         int     `json:"count"`
	TotalCapacity float64 `json:"totalCapacity"`
	AverageIRR    float64 `json:"averageIrr"`
}

// KPI keys. Keys that cannot be computed for a run are left out of the map.
const (
	KPITotalCapacity       = "totalCapacity"
	KPITotalInvestment     = "totalInvestment"
	KPITotalEquity         = "totalEquity"
	KPIAverageIRR          = "averageIrr"
	KPIAverageYieldOnCost  = "averageYieldOnCost"
	KPITotalEbitda         = "totalEbitda"
	KPIDebtToEquityRatio   = "debtToEquityRatio"
	KPIRevenueCAGR         = "revenueCagr"
	KPIAverageEbitdaMargin = "averageEbitdaMargin"
)

// KPIs is the flat metric map.
type KPIs map[string]float64

// Warning is a field-level issue absorbed during ingestion.
type Warning struct {
	Stage   string `json:"stage"`
	Row     int    `json:"row,omitempty"` // 1-based data row, 0 when not row specific
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// IngestionMeta describes the run that produced a ProcessedData.
type IngestionMeta struct {
	RunID                 string            `json:"runId"`
	FileName              string            `json:"fileName"`
	Format                string            `json:"format"`
	Structure             DataStructureKind `json:"structure"`
	RowCount              int               `json:"rowCount"`
	SynthesizedProjects   bool              `json:"synthesizedProjects"`
	SynthesizedFinancials bool              `json:"synthesizedFinancials"`
	ContentHash           string            `json:"contentHash,omitempty"`
	ProcessedAt           time.Time         `json:"processedAt"`
}

// ProcessedData is the root output of one ingestion run.
type ProcessedData struct {
	KPIs                 KPIs                        `json:"kpis"`
	FinancialProjections FinancialProjectionSeries   `json:"financialProjections"`
	Projects             []Project                   `json:"projects"`
	CountryTotals        map[string]CountryTotal     `json:"countryTotals"`
	ProjectTypes         map[string]ProjectTypeTotal `json:"projectTypes"`
	Warnings             []Warning                   `json:"warnings,omitempty"`
	Meta                 IngestionMeta               `json:"meta"`
}

// NewProcessedData returns an empty result with every collection initialised.
func NewProcessedData() *ProcessedData {
	return &ProcessedData{
		KPIs:                 KPIs{},
		FinancialProjections: NewFinancialProjectionSeries(0),
		Projects:             []Project{},
		CountryTotals:        map[string]CountryTotal{},
		ProjectTypes:         map[string]ProjectTypeTotal{},
	}
}
