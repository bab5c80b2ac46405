package normalize

import (
	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// ProjectNormalizer maps raw rows to projects.
type ProjectNormalizer struct {
	tables *Tables
}

// NewProjectNormalizer creates a normalizer; nil tables means DefaultTables.
func NewProjectNormalizer(tables *Tables) *ProjectNormalizer {
	if tables == nil {
		tables = DefaultTables()
	}
	return &ProjectNormalizer{tables: tables}
}

// NormalizeProjects maps every row to one project, in input order.
func NormalizeProjects(rows []models.RawRow, tables *Tables, d *diag.Collector) []models.Project {
	return NewProjectNormalizer(tables).Normalize(rows, d)
}

// Normalize maps every row to one project. Missing fields take their
// defaults; the row never fails.
func (n *ProjectNormalizer) Normalize(rows []models.RawRow, d *diag.Collector) []models.Project {
	projects := make([]models.Project, 0, len(rows))
	for i, row := range rows {
		projects = append(projects, n.normalizeRow(i+1, row, d))
	}
	return projects
}

func (n *ProjectNormalizer) normalizeRow(rowNum int, row models.RawRow, d *diag.Collector) models.Project {
	t := n.tables
	f := t.ProjectFields
	r := newResolver(row, t.Location.LatitudeHeader, t.Location.LongitudeHeader)

	str := func(field string, candidates []string, def string) string {
		if s, ok := r.String(candidates); ok {
			return s
		}
		d.Add(diag.StageProjects, rowNum, field, "no value found, using %q", def)
		return def
	}
	num := func(field string, candidates []string) float64 {
		if v, _, ok := r.Number(candidates); ok {
			return v
		}
		d.Add(diag.StageProjects, rowNum, field, "no numeric value found, using 0")
		return 0
	}

	p := models.Project{
		Name:           str("name", f.Name, t.Defaults.Name),
		Type:           str("type", f.Type, t.Defaults.Type),
		Country:        str("country", f.Country, t.Defaults.Country),
		Status:         str("status", f.Status, t.Defaults.Status),
		Capacity:       num("capacity", f.Capacity),
		InvestmentCost: num("investmentCost", f.InvestmentCost),
		Equity:         num("equity", f.Equity),
		Revenue:        num("revenue", f.Revenue),
		Ebitda:         num("ebitda", f.Ebitda),
		Profit:         num("profit", f.Profit),
		YieldOnCost:    num("yieldOnCost", f.YieldOnCost) / 100,
		IRR:            num("irr", f.IRR) / 100,
		CashReturn:     num("cashReturn", f.CashReturn),
	}
	p.Location = n.location(rowNum, r, p.Country, d)
	return p
}

// location prefers explicit coordinate columns, then the country centroid.
func (n *ProjectNormalizer) location(rowNum int, r resolver, country string, d *diag.Collector) [2]float64 {
	loc := &n.tables.Location

	latRaw, hasLat := r.Exact(loc.LatitudeHeader)
	lngRaw, hasLng := r.Exact(loc.LongitudeHeader)
	if hasLat || hasLng {
		lat, latOK := ParseNumber(latRaw)
		lng, lngOK := ParseNumber(lngRaw)
		if latOK && lngOK {
			return [2]float64{lng, lat}
		}
		d.Add(diag.StageProjects, rowNum, "location", "coordinates incomplete, using country centroid")
	}

	if !loc.HasCentroid(country) {
		d.Add(diag.StageProjects, rowNum, "location", "no centroid for country %q, using default", country)
	}
	return loc.Centroid(country)
}
