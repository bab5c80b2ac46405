// Package synthesis fills in the half of a portfolio that an upload did not
// carry: a yearly projection derived from projects, or a plausible project
// list derived from a yearly projection.
package synthesis

import (
	"fmt"
	"math"

	"portfolio_ingest/pkg/models"
)

// Projection template for FinancialsFromProjects.
var (
	ProjectionStartYear = 2024
	// RevenueRamp scales total project revenue per year, starting at ProjectionStartYear.
	RevenueRamp = []float64{0, 0.16, 1, 1.01, 1.02, 1.03, 1.04}
)

const (
	operationCostShare = 0.09
	profitShare        = 0.62
	buildCashShare     = 0.30
	buildYears         = 2
	equityShare        = 0.30
	cashReturnShare    = 0.70
)

// Options carries the categorical pools used for synthetic projects.
type Options struct {
	ProjectTypes []string
	Countries    []string
	Status       string
}

// DefaultOptions returns the built-in pools.
func DefaultOptions() Options {
	return Options{
		ProjectTypes: []string{"Solar Ground", "On-shore Wind"},
		Countries:    []string{"Romania", "Bulgaria", "N.Macedonia", "Serbia", "Greece"},
		Status:       "Planning",
	}
}

// Engine synthesizes missing portfolio halves.
type Engine struct {
	rng  Source
	opts Options
}

// NewEngine creates an engine. A nil source is seeded from the clock; empty
// pools fall back to DefaultOptions.
func NewEngine(rng Source, opts Options) *Engine {
	if rng == nil {
		rng = NewSeededSource(0)
	}
	def := DefaultOptions()
	if len(opts.ProjectTypes) == 0 {
		opts.ProjectTypes = def.ProjectTypes
	}
	if len(opts.Countries) == 0 {
		opts.Countries = def.Countries
	}
	if opts.Status == "" {
		opts.Status = def.Status
	}
	return &Engine{rng: rng, opts: opts}
}

// FinancialsFromProjects derives a seven-year projection from the summed
// revenue of projects. No projects yields an empty series.
func FinancialsFromProjects(projects []models.Project) models.FinancialProjectionSeries {
	if len(projects) == 0 {
		return models.NewFinancialProjectionSeries(0)
	}

	var totalRevenue float64
	for _, p := range projects {
		totalRevenue += p.Revenue
	}

	series := models.NewFinancialProjectionSeries(len(RevenueRamp))
	for i, coef := range RevenueRamp {
		revenue := totalRevenue * coef
		cost := 0.0
		if revenue != 0 {
			cost = revenue * operationCostShare
		}
		ebitda := revenue - cost
		profit := ebitda * profitShare

		cashFlow := profit
		if i < buildYears {
			cashFlow = -totalRevenue * buildCashShare * float64(i+1)
		}
		series.Append(models.NumericPeriod(float64(ProjectionStartYear+i)), revenue, cost, ebitda, profit, cashFlow)
	}
	return series
}

// ProjectsFromFinancials draws synthetic projects with the default pools.
func ProjectsFromFinancials(series models.FinancialProjectionSeries, rng Source) []models.Project {
	return NewEngine(rng, DefaultOptions()).ProjectsFromFinancials(series)
}

// ProjectsFromFinancials draws five to eight projects whose revenue and
// EBITDA add up to the projection's peak year. An empty series yields none.
func (e *Engine) ProjectsFromFinancials(series models.FinancialProjectionSeries) []models.Project {
	if series.Len() == 0 || len(series.Revenues) == 0 {
		return []models.Project{}
	}

	// 1. Peak year budgets
	peak := peakIndex(series.Revenues)
	remainingRevenue := series.Revenues[peak]
	remainingEbitda := 0.0
	if peak < len(series.Ebitda) {
		remainingEbitda = series.Ebitda[peak]
	}

	// 2. Split budgets across projects
	count := int(math.Floor(e.rng.Float64()*4)) + 5
	projects := make([]models.Project, 0, count)
	for i := 0; i < count; i++ {
		var revenue, ebitda float64
		if i == count-1 {
			revenue, ebitda = remainingRevenue, remainingEbitda
		} else {
			ratio := e.rng.Float64()*0.3 + 0.05
			revenue = jsRound(remainingRevenue * ratio)
			ebitda = jsRound(remainingEbitda * ratio)
		}

		projectType := pick(e.opts.ProjectTypes, e.rng.Float64())
		country := pick(e.opts.Countries, e.rng.Float64())

		capacity := jsRound(revenue * (e.rng.Float64()*3 + 7))
		investment := jsRound(capacity * (e.rng.Float64()*0.3 + 0.7))
		irr := jsRound(e.rng.Float64()*5+25) / 100

		yieldOnCost := 0.0
		if investment != 0 {
			yieldOnCost = jsRound(ebitda/investment*100) / 100
		}

		lng := e.rng.Float64()*10 + 15
		lat := e.rng.Float64()*10 + 39

		projects = append(projects, models.Project{
			Name:           fmt.Sprintf("Project %d", i+1),
			Type:           projectType,
			Country:        country,
			Status:         e.opts.Status,
			Capacity:       capacity,
			InvestmentCost: investment,
			Equity:         jsRound(investment * equityShare),
			Revenue:        revenue,
			Ebitda:         ebitda,
			Profit:         jsRound(ebitda * profitShare),
			YieldOnCost:    yieldOnCost,
			IRR:            irr,
			CashReturn:     jsRound(investment * cashReturnShare),
			Location:       [2]float64{lng, lat},
		})

		remainingRevenue -= revenue
		remainingEbitda -= ebitda
	}
	return projects
}

// peakIndex returns the first index holding the maximum value.
func peakIndex(values []float64) int {
	idx := 0
	for i, v := range values {
		if v > values[idx] {
			idx = i
		}
	}
	return idx
}

func pick(pool []string, r float64) string {
	i := int(math.Floor(r * float64(len(pool))))
	if i >= len(pool) {
		i = len(pool) - 1
	}
	return pool[i]
}

// jsRound rounds half up, towards positive infinity.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}
