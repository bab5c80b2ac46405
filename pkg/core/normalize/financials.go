package normalize

import (
	"sort"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

type periodRow struct {
	period models.Period
	row    models.RawRow
	num    int
}

// NormalizeFinancials turns one-row-per-period data into aligned series
// sorted by period. Rows with equal periods keep their input order.
func NormalizeFinancials(rows []models.RawRow, tables *Tables, d *diag.Collector) models.FinancialProjectionSeries {
	if tables == nil {
		tables = DefaultTables()
	}
	f := tables.FinancialFields

	// 1. Coerce each row's period
	ordered := make([]periodRow, 0, len(rows))
	for i, row := range rows {
		r := newResolver(row)
		var period models.Period
		if h, ok := r.Header(f.Period); ok {
			period = models.PeriodFromValue(row.Values[h])
		} else {
			period = models.LabelPeriod("")
		}
		if !period.Numeric && period.Label == "" {
			d.Add(diag.StageFinancial, i+1, "years", "no period value")
		}
		ordered = append(ordered, periodRow{period: period, row: row, num: i + 1})
	}

	// 2. Stable sort: numeric ascending, then labels
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].period.Less(ordered[b].period)
	})

	// 3. Extract the series
	series := models.NewFinancialProjectionSeries(len(ordered))
	for _, pr := range ordered {
		r := newResolver(pr.row)
		num := func(field string, candidates []string) float64 {
			if v, _, ok := r.Number(candidates); ok {
				return v
			}
			d.Add(diag.StageFinancial, pr.num, field, "no numeric value found, using 0")
			return 0
		}
		series.Append(
			pr.period,
			num("revenues", f.Revenues),
			num("operationCosts", f.OperationCosts),
			num("ebitda", f.Ebitda),
			num("profit", f.Profit),
			num("cashFlow", f.CashFlow),
		)
	}
	return series
}
