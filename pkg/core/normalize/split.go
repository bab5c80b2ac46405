package normalize

import (
	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// SplitMixed routes the rows of a mixed file. A row is a project row when a
// project-identity header holds a value, otherwise a financial row when a
// period header holds a value. Remaining rows are dropped.
func SplitMixed(rows []models.RawRow, tables *Tables, d *diag.Collector) (projectRows, financialRows []models.RawRow) {
	if tables == nil {
		tables = DefaultTables()
	}
	projectRows = make([]models.RawRow, 0, len(rows))
	financialRows = make([]models.RawRow, 0)

	for i, row := range rows {
		r := newResolver(row)
		switch {
		case r.Has(tables.MixedSplit.ProjectIdentity):
			projectRows = append(projectRows, row)
		case r.Has(tables.MixedSplit.Period):
			financialRows = append(financialRows, row)
		default:
			d.Add(diag.StageClassify, i+1, "", "row has neither a project identity nor a period, dropped")
		}
	}
	return projectRows, financialRows
}
