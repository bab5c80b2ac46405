package calc

import (
	"math"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// Aggregation is the grouped and portfolio-level view of a run.
type Aggregation struct {
	CountryTotals map[string]models.CountryTotal
	ProjectTypes  map[string]models.ProjectTypeTotal
	KPIs          models.KPIs
}

// Aggregate recomputes every grouping and KPI from scratch.
func Aggregate(projects []models.Project, series models.FinancialProjectionSeries, d *diag.Collector) Aggregation {
	return Aggregation{
		CountryTotals: GroupByCountry(projects),
		ProjectTypes:  GroupByType(projects),
		KPIs:          ComputeKPIs(projects, series, d),
	}
}

// GroupByCountry sums project figures per country.
func GroupByCountry(projects []models.Project) map[string]models.CountryTotal {
	totals := make(map[string]models.CountryTotal)
	for _, p := range projects {
		t := totals[p.Country]
		t.Sites++
		t.MW += p.Capacity
		t.Investment += p.InvestmentCost
		t.Equity += p.Equity
		t.Revenue += p.Revenue
		t.Ebitda += p.Ebitda
		t.Profit += p.Profit
		totals[p.Country] = t
	}
	return totals
}

// GroupByType counts projects per type with their capacity and mean IRR.
func GroupByType(projects []models.Project) map[string]models.ProjectTypeTotal {
	irrSums := make(map[string]float64)
	totals := make(map[string]models.ProjectTypeTotal)
	for _, p := range projects {
		t := totals[p.Type]
		t.Count++
		t.TotalCapacity += p.Capacity
		irrSums[p.Type] += p.IRR
		totals[p.Type] = t
	}
	for k, t := range totals {
		t.AverageIRR = irrSums[k] / float64(t.Count)
		totals[k] = t
	}
	return totals
}

// ComputeKPIs derives the portfolio metrics. Project KPIs need at least one
// project and projection KPIs at least one period; keys that cannot be
// computed are left out.
func ComputeKPIs(projects []models.Project, series models.FinancialProjectionSeries, d *diag.Collector) models.KPIs {
	kpis := models.KPIs{}

	// 1. Portfolio totals
	if n := len(projects); n > 0 {
		var capacity, investment, equity, irr, yoc, ebitda float64
		for _, p := range projects {
			capacity += p.Capacity
			investment += p.InvestmentCost
			equity += p.Equity
			irr += p.IRR
			yoc += p.YieldOnCost
			ebitda += p.Ebitda
		}
		kpis[models.KPITotalCapacity] = capacity
		kpis[models.KPITotalInvestment] = investment
		kpis[models.KPITotalEquity] = equity
		kpis[models.KPIAverageIRR] = irr / float64(n)
		kpis[models.KPIAverageYieldOnCost] = yoc / float64(n)
		kpis[models.KPITotalEbitda] = ebitda

		if equity != 0 {
			kpis[models.KPIDebtToEquityRatio] = (investment - equity) / equity
		} else {
			d.Add(diag.StageKPI, 0, models.KPIDebtToEquityRatio, "total equity is zero, ratio omitted")
		}
	}

	// 2. Projection metrics
	if series.Len() > 0 {
		if cagr, ok := RevenueCAGR(series.Revenues); ok {
			kpis[models.KPIRevenueCAGR] = cagr
		} else {
			d.Add(diag.StageKPI, 0, models.KPIRevenueCAGR, "revenue growth is undefined for this series, CAGR omitted")
		}
		kpis[models.KPIAverageEbitdaMargin] = AverageMargin(series.Ebitda, series.Revenues)
	}
	return kpis
}

// RevenueCAGR grows from the first positive revenue to the last entry. The
// exponent spans the periods after the first positive one, or 1 when it is
// the final period.
func RevenueCAGR(revenues []float64) (float64, bool) {
	first := -1
	for i, r := range revenues {
		if r > 0 {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, false
	}

	periods := len(revenues) - first - 1
	if periods == 0 {
		periods = 1
	}
	last := revenues[len(revenues)-1]

	cagr := math.Pow(last/revenues[first], 1/float64(periods)) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return 0, false
	}
	return cagr, true
}

// AverageMargin is the mean of value/revenue per period; periods with zero
// revenue count as a zero margin.
func AverageMargin(values, revenues []float64) float64 {
	n := len(revenues)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		if revenues[i] != 0 {
			sum += values[i] / revenues[i]
		}
	}
	return sum / float64(n)
}
