// Package normalize maps heterogeneous spreadsheet rows onto the canonical
// Project and FinancialProjectionSeries records.
package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// ProjectFields lists, per canonical project field, the header terms tried in
// priority order.
type ProjectFields struct {
	Name           []string `yaml:"name"`
	Type           []string `yaml:"type"`
	Country        []string `yaml:"country"`
	Status         []string `yaml:"status"`
	Capacity       []string `yaml:"capacity"`
	InvestmentCost []string `yaml:"investment_cost"`
	Equity         []string `yaml:"equity"`
	Revenue        []string `yaml:"revenue"`
	Ebitda         []string `yaml:"ebitda"`
	Profit         []string `yaml:"profit"`
	YieldOnCost    []string `yaml:"yield_on_cost"`
	IRR            []string `yaml:"irr"`
	CashReturn     []string `yaml:"cash_return"`
}

// FinancialFields lists the header terms for each yearly series.
type FinancialFields struct {
	Period         []string `yaml:"period"`
	Revenues       []string `yaml:"revenues"`
	OperationCosts []string `yaml:"operation_costs"`
	Ebitda         []string `yaml:"ebitda"`
	Profit         []string `yaml:"profit"`
	CashFlow       []string `yaml:"cash_flow"`
}

// Defaults holds the fallback strings of the project record.
type Defaults struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Country string `yaml:"country"`
	Status  string `yaml:"status"`
}

// LocationTable resolves project coordinates.
type LocationTable struct {
	LatitudeHeader  string               `yaml:"latitude_header"`
	LongitudeHeader string               `yaml:"longitude_header"`
	Centroids       map[string][]float64 `yaml:"centroids"` // country -> [lng, lat]
	Default         []float64            `yaml:"default"`

	lookup map[string][2]float64
}

// MixedSplit holds the terms used to route rows of a mixed file.
type MixedSplit struct {
	ProjectIdentity []string `yaml:"project_identity"`
	Period          []string `yaml:"period"`
}

// SynthesisTable holds the categorical values drawn for synthetic projects.
type SynthesisTable struct {
	ProjectTypes []string `yaml:"project_types"`
	Countries    []string `yaml:"countries"`
	Status       string   `yaml:"status"`
}

// Tables bundles every swappable lookup used during normalization.
type Tables struct {
	ProjectVocabulary   []string        `yaml:"project_vocabulary"`
	FinancialVocabulary []string        `yaml:"financial_vocabulary"`
	ProjectFields       ProjectFields   `yaml:"project_fields"`
	FinancialFields     FinancialFields `yaml:"financial_fields"`
	Defaults            Defaults        `yaml:"defaults"`
	Location            LocationTable   `yaml:"location"`
	MixedSplit          MixedSplit      `yaml:"mixed_split"`
	Synthesis           SynthesisTable  `yaml:"synthesis"`
}

// DefaultTables returns the built-in tables.
func DefaultTables() *Tables {
	t := &Tables{
		ProjectVocabulary:   []string{"name", "type", "country", "capacity", "investment", "equity", "revenue", "ebitda"},
		FinancialVocabulary: []string{"year", "revenue", "cost", "ebitda", "profit", "cashflow"},
		ProjectFields: ProjectFields{
			Name:           []string{"name", "project_name", "project", "project name", "site"},
			Type:           []string{"type", "project_type", "project type", "technology"},
			Country:        []string{"country", "location", "region"},
			Status:         []string{"status", "project_status", "project status"},
			Capacity:       []string{"capacity", "capacity_mw", "mw", "power"},
			InvestmentCost: []string{"investment", "investment_cost", "cost", "capex"},
			Equity:         []string{"equity", "equity_required", "own capital"},
			Revenue:        []string{"revenue", "annual_revenue", "income"},
			Ebitda:         []string{"ebitda", "annual_ebitda"},
			Profit:         []string{"profit", "annual_profit", "net income"},
			YieldOnCost:    []string{"yield", "yield_on_cost"},
			IRR:            []string{"irr", "irr_percentage", "internal rate of return"},
			CashReturn:     []string{"cash return", "cash_return", "cash flow"},
		},
		FinancialFields: FinancialFields{
			Period:         []string{"year", "period", "date"},
			Revenues:       []string{"revenue", "income"},
			OperationCosts: []string{"cost", "expense", "opex"},
			Ebitda:         []string{"ebitda"},
			Profit:         []string{"profit", "net income", "earnings"},
			CashFlow:       []string{"cash flow", "cashflow", "cf"},
		},
		Defaults: Defaults{
			Name:    "Unknown",
			Type:    "Unknown",
			Country: "Unknown",
			Status:  "Planning",
		},
		Location: LocationTable{
			LatitudeHeader:  "location_lat",
			LongitudeHeader: "location_lng",
			Centroids: map[string][]float64{
				"Romania":     {26.1025, 44.4268},
				"N.Macedonia": {21.7453, 41.6086},
				"Bulgaria":    {23.3219, 42.6977},
				"Serbia":      {20.4582, 44.7866},
				"Greece":      {23.7275, 37.9838},
			},
			Default: []float64{23.5, 42.5},
		},
		MixedSplit: MixedSplit{
			ProjectIdentity: []string{"name", "project", "site"},
			Period:          []string{"year", "period"},
		},
		Synthesis: SynthesisTable{
			ProjectTypes: []string{"Solar Ground", "On-shore Wind"},
			Countries:    []string{"Romania", "Bulgaria", "N.Macedonia", "Serbia", "Greece"},
			Status:       "Planning",
		},
	}
	if err := t.prepare(); err != nil {
		panic(err)
	}
	return t
}

// LoadTables reads a YAML tables file. Sections missing from the file keep
// their built-in values.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables decodes YAML tables over the defaults.
func ParseTables(data []byte) (*Tables, error) {
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to decode tables: %w", err)
	}

	t := DefaultTables()
	t.merge(&override)
	if err := t.prepare(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tables) merge(o *Tables) {
	mergeList(&t.ProjectVocabulary, o.ProjectVocabulary)
	mergeList(&t.FinancialVocabulary, o.FinancialVocabulary)

	pf, opf := &t.ProjectFields, o.ProjectFields
	mergeList(&pf.Name, opf.Name)
	mergeList(&pf.Type, opf.Type)
	mergeList(&pf.Country, opf.Country)
	mergeList(&pf.Status, opf.Status)
	mergeList(&pf.Capacity, opf.Capacity)
	mergeList(&pf.InvestmentCost, opf.InvestmentCost)
	mergeList(&pf.Equity, opf.Equity)
	mergeList(&pf.Revenue, opf.Revenue)
	mergeList(&pf.Ebitda, opf.Ebitda)
	mergeList(&pf.Profit, opf.Profit)
	mergeList(&pf.YieldOnCost, opf.YieldOnCost)
	mergeList(&pf.IRR, opf.IRR)
	mergeList(&pf.CashReturn, opf.CashReturn)

	ff, off := &t.FinancialFields, o.FinancialFields
	mergeList(&ff.Period, off.Period)
	mergeList(&ff.Revenues, off.Revenues)
	mergeList(&ff.OperationCosts, off.OperationCosts)
	mergeList(&ff.Ebitda, off.Ebitda)
	mergeList(&ff.Profit, off.Profit)
	mergeList(&ff.CashFlow, off.CashFlow)

	mergeString(&t.Defaults.Name, o.Defaults.Name)
	mergeString(&t.Defaults.Type, o.Defaults.Type)
	mergeString(&t.Defaults.Country, o.Defaults.Country)
	mergeString(&t.Defaults.Status, o.Defaults.Status)

	mergeString(&t.Location.LatitudeHeader, o.Location.LatitudeHeader)
	mergeString(&t.Location.LongitudeHeader, o.Location.LongitudeHeader)
	if len(o.Location.Centroids) > 0 {
		t.Location.Centroids = o.Location.Centroids
	}
	if len(o.Location.Default) > 0 {
		t.Location.Default = o.Location.Default
	}

	mergeList(&t.MixedSplit.ProjectIdentity, o.MixedSplit.ProjectIdentity)
	mergeList(&t.MixedSplit.Period, o.MixedSplit.Period)

	mergeList(&t.Synthesis.ProjectTypes, o.Synthesis.ProjectTypes)
	mergeList(&t.Synthesis.Countries, o.Synthesis.Countries)
	mergeString(&t.Synthesis.Status, o.Synthesis.Status)
}

// prepare validates coordinate pairs and builds the case-insensitive
// centroid index.
func (t *Tables) prepare() error {
	if len(t.Location.Default) != 2 {
		return fmt.Errorf("location.default must be [lng, lat], got %d values", len(t.Location.Default))
	}
	lookup := make(map[string][2]float64, len(t.Location.Centroids))
	for country, coords := range t.Location.Centroids {
		if len(coords) != 2 {
			return fmt.Errorf("centroid for %q must be [lng, lat], got %d values", country, len(coords))
		}
		lookup[strings.ToLower(strings.TrimSpace(country))] = [2]float64{coords[0], coords[1]}
	}
	t.Location.lookup = lookup
	return nil
}

// Centroid returns the coordinates for country, or the default pair.
func (l *LocationTable) Centroid(country string) [2]float64 {
	if c, ok := l.lookup[strings.ToLower(strings.TrimSpace(country))]; ok {
		return c
	}
	return [2]float64{l.Default[0], l.Default[1]}
}

// HasCentroid reports whether country has its own centroid entry.
func (l *LocationTable) HasCentroid(country string) bool {
	_, ok := l.lookup[strings.ToLower(strings.TrimSpace(country))]
	return ok
}

func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
