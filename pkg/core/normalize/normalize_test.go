package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_ingest/pkg/core/diag"
	"portfolio_ingest/pkg/models"
)

// mkRow builds a row from header/value pairs, keeping their order.
func mkRow(kv ...interface{}) models.RawRow {
	row := models.NewRawRow(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		row.Set(kv[i].(string), kv[i+1])
	}
	return row
}

func TestNormalizeProjects_RomaniaRow(t *testing.T) {
	rows := []models.RawRow{mkRow("country", "Romania", "capacity", 50.0, "investment", 40.0, "irr", 25.0)}

	projects := NormalizeProjects(rows, nil, nil)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "Unknown", p.Name)
	assert.Equal(t, "Unknown", p.Type)
	assert.Equal(t, "Romania", p.Country)
	assert.Equal(t, "Planning", p.Status)
	assert.Equal(t, 50.0, p.Capacity)
	assert.Equal(t, 40.0, p.InvestmentCost)
	assert.Equal(t, 0.25, p.IRR)
	assert.Equal(t, 0.0, p.Equity)
	assert.Equal(t, [2]float64{26.1025, 44.4268}, p.Location)
}

func TestNormalizeProjects_HeaderVariants(t *testing.T) {
	rows := []models.RawRow{mkRow(
		"Project Name", "Solar One",
		"Technology", "Solar Ground",
		"Country", "Bulgaria",
		"Project Status", "Operational",
		"Capacity MW", "50 MW",
		"Equity Required", "12.5",
		"Yield on cost", 28.1,
		"IRR %", "26",
	)}

	p := NormalizeProjects(rows, nil, nil)[0]

	assert.Equal(t, "Solar One", p.Name)
	assert.Equal(t, "Solar Ground", p.Type)
	assert.Equal(t, "Bulgaria", p.Country)
	assert.Equal(t, "Operational", p.Status)
	assert.Equal(t, 50.0, p.Capacity)
	assert.Equal(t, 12.5, p.Equity)
	assert.InDelta(t, 0.281, p.YieldOnCost, 1e-12)
	assert.InDelta(t, 0.26, p.IRR, 1e-12)
	assert.Equal(t, [2]float64{23.3219, 42.6977}, p.Location)
}

func TestNormalizeProjects_NumericFallsThroughCandidates(t *testing.T) {
	rows := []models.RawRow{mkRow("capacity", "n/a", "power", 12.0)}

	p := NormalizeProjects(rows, nil, nil)[0]

	assert.Equal(t, 12.0, p.Capacity)
}

func TestNormalizeProjects_EmptyStringFallsThrough(t *testing.T) {
	rows := []models.RawRow{mkRow("name", "", "site", "Alpha")}

	p := NormalizeProjects(rows, nil, nil)[0]

	assert.Equal(t, "Alpha", p.Name)
}

func TestNormalizeProjects_MissingNumericIsZero(t *testing.T) {
	d := diag.NewCollector(0)
	rows := []models.RawRow{mkRow("name", "Empty", "capacity", "unknown", "revenue", true)}

	p := NormalizeProjects(rows, nil, d)[0]

	assert.Equal(t, 0.0, p.Capacity)
	assert.Equal(t, 0.0, p.Revenue)
	assert.Equal(t, 0.0, p.InvestmentCost)
	assert.Equal(t, 0.0, p.CashReturn)

	var fields []string
	for _, w := range d.Warnings() {
		assert.Equal(t, diag.StageProjects, w.Stage)
		assert.Equal(t, 1, w.Row)
		fields = append(fields, w.Field)
	}
	assert.Contains(t, fields, "capacity")
	assert.Contains(t, fields, "revenue")
}

func TestNormalizeProjects_ExplicitCoordinates(t *testing.T) {
	rows := []models.RawRow{mkRow("name", "Wind", "Location_Lat", "45.1", "Location_Lng", 25.5)}

	p := NormalizeProjects(rows, nil, nil)[0]

	assert.Equal(t, [2]float64{25.5, 45.1}, p.Location)
	assert.Equal(t, "Unknown", p.Country, "coordinate columns are not a country")
}

func TestNormalizeProjects_IncompleteCoordinatesUseCentroid(t *testing.T) {
	d := diag.NewCollector(0)
	rows := []models.RawRow{mkRow("country", "Serbia", "location_lat", "45.1", "location_lng", "east")}

	p := NormalizeProjects(rows, nil, d)[0]

	assert.Equal(t, [2]float64{20.4582, 44.7866}, p.Location)
	assert.NotEmpty(t, d.Warnings())
}

func TestNormalizeProjects_CentroidLookup(t *testing.T) {
	rows := []models.RawRow{
		mkRow("country", "greece"),
		mkRow("country", "Italy"),
		mkRow("region", "N.Macedonia"),
	}

	projects := NormalizeProjects(rows, nil, nil)

	assert.Equal(t, [2]float64{23.7275, 37.9838}, projects[0].Location)
	assert.Equal(t, [2]float64{23.5, 42.5}, projects[1].Location)
	assert.Equal(t, "N.Macedonia", projects[2].Country)
	assert.Equal(t, [2]float64{21.7453, 41.6086}, projects[2].Location)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{50.0, 50, true},
		{"50 MW", 50, true},
		{"  -3.5e2x", -350, true},
		{".5", 0.5, true},
		{"1,000", 1, true},
		{"MW 50", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestNormalizeFinancials_SortsAndExtracts(t *testing.T) {
	rows := []models.RawRow{
		mkRow("Year", 2026.0, "Revenue", 300.0, "Operating Expenses", 30.0, "EBITDA", 270.0, "Net Income", 160.0, "Cash Flow", 150.0),
		mkRow("Year", "2024", "Revenue", 100.0, "Operating Expenses", 10.0, "EBITDA", 90.0, "Net Income", 50.0, "Cash Flow", -20.0),
		mkRow("Year", 2025.0, "Revenue", 200.0, "Operating Expenses", 20.0, "EBITDA", 180.0, "Net Income", 110.0, "Cash Flow", 100.0),
	}

	s := NormalizeFinancials(rows, nil, nil)

	require.True(t, s.IsAligned())
	assert.Equal(t, []models.Period{
		models.NumericPeriod(2024), models.NumericPeriod(2025), models.NumericPeriod(2026),
	}, s.Years)
	assert.Equal(t, []float64{100, 200, 300}, s.Revenues)
	assert.Equal(t, []float64{10, 20, 30}, s.OperationCosts)
	assert.Equal(t, []float64{90, 180, 270}, s.Ebitda)
	assert.Equal(t, []float64{50, 110, 160}, s.Profit)
	assert.Equal(t, []float64{-20, 100, 150}, s.CashFlow)
}

func TestNormalizeFinancials_LabelsAfterNumbersAndStable(t *testing.T) {
	rows := []models.RawRow{
		mkRow("period", "H2", "revenue", 1.0),
		mkRow("period", 2030.0, "revenue", 2.0),
		mkRow("period", "H1", "revenue", 3.0),
		mkRow("period", 2030.0, "revenue", 4.0),
	}

	s := NormalizeFinancials(rows, nil, nil)

	assert.Equal(t, []models.Period{
		models.NumericPeriod(2030), models.NumericPeriod(2030), models.LabelPeriod("H1"), models.LabelPeriod("H2"),
	}, s.Years)
	assert.Equal(t, []float64{2, 4, 3, 1}, s.Revenues)
}

func TestNormalizeFinancials_MissingSeriesAreZero(t *testing.T) {
	d := diag.NewCollector(0)
	rows := []models.RawRow{mkRow("year", 2025.0, "profit", "n/a")}

	s := NormalizeFinancials(rows, nil, d)

	require.True(t, s.IsAligned())
	assert.Equal(t, []float64{0}, s.Revenues)
	assert.Equal(t, []float64{0}, s.Profit)
	assert.Equal(t, []float64{0}, s.CashFlow)
	assert.NotEmpty(t, d.Warnings())
}

func TestNormalizeFinancials_Empty(t *testing.T) {
	s := NormalizeFinancials(nil, nil, nil)

	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.Years)
}

func TestSplitMixed(t *testing.T) {
	d := diag.NewCollector(0)
	rows := []models.RawRow{
		mkRow("name", "Alpha", "year", nil, "capacity", 10.0),
		mkRow("name", nil, "year", 2025.0, "profit", 5.0),
		mkRow("name", "", "year", "", "capacity", 1.0),
		mkRow("site", "Beta", "year", 2026.0),
	}

	projectRows, financialRows := SplitMixed(rows, nil, d)

	require.Len(t, projectRows, 2)
	require.Len(t, financialRows, 1)
	assert.Equal(t, "Alpha", projectRows[0].Values["name"])
	assert.Equal(t, "Beta", projectRows[1].Values["site"])
	assert.Equal(t, 2025.0, financialRows[0].Values["year"])
	require.Len(t, d.Warnings(), 1)
	assert.Equal(t, 3, d.Warnings()[0].Row)
}

func TestParseTables_OverridesKeepDefaults(t *testing.T) {
	tables, err := ParseTables([]byte(`
location:
  centroids:
    Italy: [12.4964, 41.9028]
synthesis:
  countries: [Italy]
`))
	require.NoError(t, err)

	assert.Equal(t, [2]float64{12.4964, 41.9028}, tables.Location.Centroid("ITALY"))
	assert.Equal(t, [2]float64{23.5, 42.5}, tables.Location.Centroid("Romania"))
	assert.Equal(t, []string{"Italy"}, tables.Synthesis.Countries)
	assert.Equal(t, DefaultTables().ProjectFields, tables.ProjectFields)
	assert.Equal(t, "location_lat", tables.Location.LatitudeHeader)
}

func TestParseTables_Invalid(t *testing.T) {
	_, err := ParseTables([]byte("location:\n  default: [1]\n"))
	assert.Error(t, err)

	_, err = ParseTables([]byte("project_vocabulary: {not: a list}"))
	assert.Error(t, err)
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  status: Development\n"), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, "Development", tables.Defaults.Status)

	p := NormalizeProjects([]models.RawRow{mkRow("name", "X")}, tables, nil)[0]
	assert.Equal(t, "Development", p.Status)

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTables_ShippedFileMatchesDefaults(t *testing.T) {
	tables, err := LoadTables(filepath.Join("..", "..", "..", "configs", "tables.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultTables(), tables)
}
