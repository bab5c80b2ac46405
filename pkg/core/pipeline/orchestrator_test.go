package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_ingest/pkg/core/diag"
	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/metrics"
	"portfolio_ingest/pkg/core/synthesis"
	"portfolio_ingest/pkg/models"
)

// --- Mocks ---

type MockRepository struct {
	mu       sync.Mutex
	saved    map[string]*models.ProcessedData
	SaveFunc func(ctx context.Context, data *models.ProcessedData) error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{saved: map[string]*models.ProcessedData{}}
}

func (m *MockRepository) Save(ctx context.Context, data *models.ProcessedData) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[data.Meta.RunID] = data
	return nil
}

func (m *MockRepository) Load(_ context.Context, runID string) (*models.ProcessedData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.saved[runID]; ok {
		return d, nil
	}
	return nil, apperrors.NewNotFoundError("ingestion result", runID)
}

type MockCache struct {
	entries map[string]*models.ProcessedData
	gets    int
	sets    int
	GetErr  error
}

func NewMockCache() *MockCache {
	return &MockCache{entries: map[string]*models.ProcessedData{}}
}

func (m *MockCache) Get(_ context.Context, hash string) (*models.ProcessedData, bool, error) {
	m.gets++
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	d, ok := m.entries[hash]
	if !ok {
		return nil, false, nil
	}
	cp := *d
	return &cp, true, nil
}

func (m *MockCache) Set(_ context.Context, hash string, data *models.ProcessedData) error {
	m.sets++
	cp := *data
	m.entries[hash] = &cp
	return nil
}

type failingReader struct{ read bool }

func (f *failingReader) Read([]byte) (int, error) {
	f.read = true
	return 0, errors.New("should not be read")
}

func newService(t *testing.T, opts ...Option) *IngestionService {
	t.Helper()
	opts = append([]Option{WithLogger(logger.NewTestLogger(t))}, opts...)
	return NewIngestionService(opts...)
}

// --- Tests ---

func TestProcess_ProjectsRoundTrip(t *testing.T) {
	svc := newService(t)
	input := "country,capacity,investment,irr\nRomania,50,40,25\n"

	data, err := svc.Process(context.Background(), "portfolio.csv", strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, data.Projects, 1)
	p := data.Projects[0]
	assert.Equal(t, "Romania", p.Country)
	assert.Equal(t, 50.0, p.Capacity)
	assert.Equal(t, 40.0, p.InvestmentCost)
	assert.Equal(t, 0.25, p.IRR)
	assert.Equal(t, [2]float64{26.1025, 44.4268}, p.Location)

	assert.Equal(t, models.StructureProjects, data.Meta.Structure)
	assert.True(t, data.Meta.SynthesizedFinancials)
	assert.False(t, data.Meta.SynthesizedProjects)
	assert.Equal(t, 7, data.FinancialProjections.Len())
	assert.Equal(t, 1, data.Meta.RowCount)
	assert.NotEmpty(t, data.Meta.RunID)
	assert.Len(t, data.Meta.ContentHash, 64)

	assert.Equal(t, 50.0, data.CountryTotals["Romania"].MW)
	assert.Equal(t, 1, data.ProjectTypes["Unknown"].Count)
	assert.Equal(t, 50.0, data.KPIs[models.KPITotalCapacity])
	_, hasRatio := data.KPIs[models.KPIDebtToEquityRatio]
	assert.False(t, hasRatio, "zero equity omits the ratio")
	assert.Nil(t, data.Warnings)
}

func TestProcess_UnsupportedFormatNeverReads(t *testing.T) {
	svc := newService(t)
	r := &failingReader{}

	data, err := svc.Process(context.Background(), "data.txt", r)

	assert.Nil(t, data)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "txt")
	assert.False(t, r.read)
}

func TestProcess_UnknownStructure(t *testing.T) {
	svc := newService(t)

	for _, input := range []string{"foo,bar\n1,2\n", "revenue,ebitda\n10,5\n", "name,capacity\n"} {
		_, err := svc.Process(context.Background(), "x.csv", strings.NewReader(input))
		assert.ErrorIs(t, err, apperrors.ErrStructureDetection, input)
	}
}

func TestProcess_ParseFailure(t *testing.T) {
	svc := newService(t)

	_, err := svc.Process(context.Background(), "broken.xlsx", strings.NewReader("not a workbook"))

	assert.ErrorIs(t, err, apperrors.ErrParseFailed)
}

func TestProcess_FinancialsSynthesizeProjects(t *testing.T) {
	svc := newService(t, WithSource(synthesis.NewSequenceSource(0.5)))
	input := "Year,Revenue,Cost,EBITDA,Profit,Cash Flow\n" +
		"2026,1000,100,900,550,500\n" +
		"2025,400,40,360,200,100\n"

	data, err := svc.Process(context.Background(), "plan.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, models.StructureFinancials, data.Meta.Structure)
	assert.True(t, data.Meta.SynthesizedProjects)
	assert.Equal(t, []models.Period{models.NumericPeriod(2025), models.NumericPeriod(2026)}, data.FinancialProjections.Years)
	require.Len(t, data.Projects, 7)

	var revenue float64
	for _, p := range data.Projects {
		revenue += p.Revenue
	}
	assert.Equal(t, 1000.0, revenue)
	assert.Contains(t, data.KPIs, models.KPIRevenueCAGR)
	assert.Contains(t, data.KPIs, models.KPITotalCapacity)
}

func TestProcess_MixedSplitsRows(t *testing.T) {
	svc := newService(t)
	input := "name,capacity,year,profit,revenue\n" +
		"Alpha,10,,,5\n" +
		",,2025,3,10\n"

	data, err := svc.Process(context.Background(), "mixed.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, models.StructureMixed, data.Meta.Structure)
	assert.False(t, data.Meta.SynthesizedProjects)
	assert.False(t, data.Meta.SynthesizedFinancials)
	require.Len(t, data.Projects, 1)
	assert.Equal(t, "Alpha", data.Projects[0].Name)
	assert.Equal(t, []models.Period{models.NumericPeriod(2025)}, data.FinancialProjections.Years)
	assert.Equal(t, []float64{3}, data.FinancialProjections.Profit)
}

func TestProcessWithDiagnostics(t *testing.T) {
	svc := newService(t)
	d := diag.NewCollector(0)

	data, err := svc.ProcessWithDiagnostics(context.Background(), "p.csv", strings.NewReader("name,capacity\nA,lots\n"), d)
	require.NoError(t, err)

	require.NotEmpty(t, data.Warnings)
	var fields []string
	for _, w := range data.Warnings {
		fields = append(fields, w.Field)
	}
	assert.Contains(t, fields, "capacity")
	_, hasRatio := data.KPIs[models.KPIDebtToEquityRatio]
	assert.False(t, hasRatio)
}

func TestProcess_CancelledContext(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &failingReader{}

	_, err := svc.Process(ctx, "p.csv", r)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.read)
}

func TestProcess_CacheHit(t *testing.T) {
	cache := NewMockCache()
	svc := newService(t, WithCache(cache))
	input := "name,country,capacity\nA,Greece,5\n"

	first, err := svc.Process(context.Background(), "a.csv", strings.NewReader(input))
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), "b.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets)
	assert.NotEqual(t, first.Meta.RunID, second.Meta.RunID)
	assert.Equal(t, "b.csv", second.Meta.FileName)
	assert.Equal(t, first.Meta.ContentHash, second.Meta.ContentHash)
	assert.Equal(t, first.Projects, second.Projects)
}

func TestProcess_CacheErrorsAreIgnored(t *testing.T) {
	cache := NewMockCache()
	cache.GetErr = errors.New("redis down")
	svc := newService(t, WithCache(cache))

	_, err := svc.Process(context.Background(), "a.csv", strings.NewReader("name,capacity\nA,5\n"))

	assert.NoError(t, err)
}

func TestProcess_PersistsAndLooksUp(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(t, WithRepository(repo))

	data, err := svc.Process(context.Background(), "a.csv", strings.NewReader("name,capacity\nA,5\n"))
	require.NoError(t, err)

	got, err := svc.Lookup(context.Background(), data.Meta.RunID)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = svc.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProcess_StorageFailureDoesNotFail(t *testing.T) {
	repo := NewMockRepository()
	called := false
	repo.SaveFunc = func(context.Context, *models.ProcessedData) error {
		called = true
		return apperrors.NewStorageError("save", errors.New("connection refused"))
	}
	svc := newService(t)
	svc.SetRepository(repo)

	data, err := svc.Process(context.Background(), "a.csv", strings.NewReader("name,capacity\nA,5\n"))

	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.True(t, called)
}

func TestLookup_WithoutRepository(t *testing.T) {
	_, err := newService(t).Lookup(context.Background(), "run")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("name,capacity\nA,5\n"), 0o644))
	unsupported := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(unsupported, []byte("name\n"), 0o644))
	missing := filepath.Join(dir, "missing.csv")

	results := newService(t).ProcessBatch(context.Background(), []string{good, unsupported, missing})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "good.csv", results[0].Data.Meta.FileName)
	assert.ErrorIs(t, results[1].Err, apperrors.ErrUnsupportedFormat)
	assert.Error(t, results[2].Err)
	assert.Nil(t, results[2].Data)
}

func TestProcess_Metrics(t *testing.T) {
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	svc := newService(t, WithMetrics(rec))

	_, err := svc.Process(context.Background(), "a.csv", strings.NewReader("name,capacity\nA,5\n"))
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), "a.txt", strings.NewReader(""))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.IngestionsTotal.WithLabelValues("csv", "projects")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.IngestionFailures.WithLabelValues("txt", "UNSUPPORTED_FORMAT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.SynthesizedRecords.WithLabelValues("financials")))
}

func TestWithSeed_Deterministic(t *testing.T) {
	input := "year,revenue,ebitda\n2025,500,400\n2026,800,700\n"

	a, err := newService(t, WithSeed(99)).Process(context.Background(), "p.csv", strings.NewReader(input))
	require.NoError(t, err)
	b, err := newService(t, WithSeed(99)).Process(context.Background(), "p.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, a.Projects, b.Projects)
}
