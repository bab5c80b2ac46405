// Package pipeline runs an uploaded file through parsing, classification,
// normalization, synthesis and aggregation.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"portfolio_ingest/pkg/core/calc"
	"portfolio_ingest/pkg/core/classify"
	"portfolio_ingest/pkg/core/diag"
	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/core/ingest"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/metrics"
	"portfolio_ingest/pkg/core/normalize"
	"portfolio_ingest/pkg/core/synthesis"
	"portfolio_ingest/pkg/models"
)

// ResultRepository persists finished runs.
type ResultRepository interface {
	Save(ctx context.Context, data *models.ProcessedData) error
	Load(ctx context.Context, runID string) (*models.ProcessedData, error)
}

// ResultCache short-circuits repeated uploads of identical bytes.
type ResultCache interface {
	Get(ctx context.Context, hash string) (*models.ProcessedData, bool, error)
	Set(ctx context.Context, hash string, data *models.ProcessedData) error
}

// IngestionService turns one uploaded file into a ProcessedData. It holds no
// per-run state and may be shared between goroutines.
type IngestionService struct {
	parser     *ingest.FileParser
	classifier *classify.Classifier
	tables     *normalize.Tables
	synth      *synthesis.Engine
	source     synthesis.Source
	log        logger.Logger
	metrics    *metrics.Recorder
	repo       ResultRepository
	cache      ResultCache

	now   func() time.Time
	newID func() string
}

// Option configures an IngestionService.
type Option func(*IngestionService)

// WithTables swaps the vocabularies and lookup tables.
func WithTables(t *normalize.Tables) Option {
	return func(s *IngestionService) {
		if t != nil {
			s.tables = t
		}
	}
}

// WithSource sets the random source used for synthetic projects.
func WithSource(src synthesis.Source) Option {
	return func(s *IngestionService) { s.source = src }
}

// WithSeed seeds the synthetic project source; 0 seeds from the clock.
func WithSeed(seed int64) Option {
	return func(s *IngestionService) { s.source = synthesis.NewSeededSource(seed) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *IngestionService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *IngestionService) { s.metrics = m }
}

// WithRepository enables result persistence.
func WithRepository(r ResultRepository) Option {
	return func(s *IngestionService) { s.repo = r }
}

// WithCache enables the content-hash result cache.
func WithCache(c ResultCache) Option {
	return func(s *IngestionService) { s.cache = c }
}

// NewIngestionService creates a service with built-in tables, a clock-seeded
// source and a no-op logger unless options say otherwise.
func NewIngestionService(opts ...Option) *IngestionService {
	s := &IngestionService{
		parser: ingest.NewFileParser(),
		tables: normalize.DefaultTables(),
		log:    logger.NewNoOpLogger(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.source == nil {
		s.source = synthesis.NewSeededSource(0)
	}

	s.classifier = classify.NewClassifier(s.tables.ProjectVocabulary, s.tables.FinancialVocabulary)
	s.synth = synthesis.NewEngine(s.source, synthesis.Options{
		ProjectTypes: s.tables.Synthesis.ProjectTypes,
		Countries:    s.tables.Synthesis.Countries,
		Status:       s.tables.Synthesis.Status,
	})
	return s
}

// SetRepository allows injecting a custom repository (e.g., for testing).
func (s *IngestionService) SetRepository(repo ResultRepository) {
	s.repo = repo
}

// SetCache allows injecting a custom cache (e.g., for testing).
func (s *IngestionService) SetCache(cache ResultCache) {
	s.cache = cache
}

// Tables returns the lookup tables the service normalizes with.
func (s *IngestionService) Tables() *normalize.Tables {
	return s.tables
}

// Process ingests one file. name is only used for its extension and metadata.
func (s *IngestionService) Process(ctx context.Context, name string, r io.Reader) (*models.ProcessedData, error) {
	return s.run(ctx, name, r, nil)
}

// ProcessWithDiagnostics ingests one file and attaches the warnings recorded
// in d to the result. Diagnostic runs bypass the result cache.
func (s *IngestionService) ProcessWithDiagnostics(ctx context.Context, name string, r io.Reader, d *diag.Collector) (*models.ProcessedData, error) {
	if d == nil {
		d = diag.NewCollector(0)
	}
	data, err := s.run(ctx, name, r, d)
	if err != nil {
		return nil, err
	}
	data.Warnings = d.Warnings()
	return data, nil
}

// ProcessFile opens path and ingests it.
func (s *IngestionService) ProcessFile(ctx context.Context, path string) (*models.ProcessedData, error) {
	return s.processPath(ctx, path, nil)
}

// ProcessFileWithDiagnostics opens path and ingests it with diagnostics.
func (s *IngestionService) ProcessFileWithDiagnostics(ctx context.Context, path string, d *diag.Collector) (*models.ProcessedData, error) {
	if d == nil {
		d = diag.NewCollector(0)
	}
	data, err := s.processPath(ctx, path, d)
	if err != nil {
		return nil, err
	}
	data.Warnings = d.Warnings()
	return data, nil
}

func (s *IngestionService) processPath(ctx context.Context, path string, d *diag.Collector) (*models.ProcessedData, error) {
	name := filepath.Base(path)
	if ext := ingest.Extension(name); !s.parser.Supports(ext) {
		err := apperrors.NewUnsupportedFormatError(ext, ingest.SupportedFormats)
		s.metrics.ObserveFailure(ext, string(err.Code), 0)
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return s.run(ctx, name, f, d)
}

// BatchResult is the outcome of one file in ProcessBatch.
type BatchResult struct {
	Path string
	Data *models.ProcessedData
	Err  error
}

// ProcessBatch ingests paths one at a time. A failing file does not stop the
// batch; a cancelled context fails the remaining files.
func (s *IngestionService) ProcessBatch(ctx context.Context, paths []string) []BatchResult {
	results := make([]BatchResult, 0, len(paths))
	for _, path := range paths {
		data, err := s.ProcessFile(ctx, path)
		results = append(results, BatchResult{Path: path, Data: data, Err: err})
	}
	return results
}

// Lookup returns a stored result by run ID.
func (s *IngestionService) Lookup(ctx context.Context, runID string) (*models.ProcessedData, error) {
	if s.repo == nil {
		return nil, apperrors.NewNotFoundError("ingestion result", runID)
	}
	return s.repo.Load(ctx, runID)
}

func (s *IngestionService) run(ctx context.Context, name string, r io.Reader, d *diag.Collector) (*models.ProcessedData, error) {
	start := time.Now()
	format := ingest.Extension(name)
	log := s.log.With(map[string]interface{}{"file": name, "format": format})

	data, err := s.ingest(ctx, name, format, r, d, log)
	if err != nil {
		code := apperrors.CodeOf(err)
		s.metrics.ObserveFailure(format, string(code), time.Since(start))
		log.WithError(err).Warn("ingestion failed", map[string]interface{}{"code": string(code)})
		return nil, err
	}

	s.metrics.ObserveSuccess(format, string(data.Meta.Structure), data.Meta.RowCount, time.Since(start))
	log.Info("ingestion completed", map[string]interface{}{
		"run_id":      data.Meta.RunID,
		"structure":   string(data.Meta.Structure),
		"rows":        data.Meta.RowCount,
		"projects":    len(data.Projects),
		"periods":     data.FinancialProjections.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return data, nil
}

func (s *IngestionService) ingest(ctx context.Context, name, format string, r io.Reader, d *diag.Collector, log logger.Logger) (*models.ProcessedData, error) {
	// 0. Reject before touching the input
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.parser.Supports(format) {
		return nil, apperrors.NewUnsupportedFormatError(format, ingest.SupportedFormats)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewParseFailedError(format, err)
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	// 1. Cache
	if s.cache != nil && d == nil {
		cached, hit, err := s.cache.Get(ctx, hash)
		if err != nil {
			log.WithError(err).Warn("result cache read failed", nil)
		} else if hit {
			cached.Meta.RunID = s.newID()
			cached.Meta.FileName = name
			cached.Meta.ProcessedAt = s.now()
			log.Debug("result cache hit", map[string]interface{}{"hash": hash})
			s.persist(ctx, cached, log)
			return cached, nil
		}
	}

	// 2. Parse
	rows, err := s.parser.Parse(name, bytes.NewReader(raw), d)
	if err != nil {
		return nil, err
	}

	// 3. Classify
	res := s.classifier.Explain(rows)
	log.Debug("structure classified", map[string]interface{}{
		"kind":              string(res.Kind),
		"project_matches":   res.ProjectMatches,
		"financial_matches": res.FinancialMatches,
	})
	if res.Kind == models.StructureUnknown {
		if res.SharedOnlyMatch {
			d.Add(diag.StageClassify, 0, "", "only columns shared by both vocabularies matched: %v", res.ProjectMatches)
		}
		return nil, apperrors.NewStructureDetectionError(res.Headers)
	}

	// 4. Normalize
	projects := []models.Project{}
	series := models.NewFinancialProjectionSeries(0)
	switch res.Kind {
	case models.StructureProjects:
		projects = normalize.NormalizeProjects(rows, s.tables, d)
	case models.StructureFinancials:
		series = normalize.NormalizeFinancials(rows, s.tables, d)
	case models.StructureMixed:
		projectRows, financialRows := normalize.SplitMixed(rows, s.tables, d)
		if len(projectRows) > 0 {
			projects = normalize.NormalizeProjects(projectRows, s.tables, d)
		}
		if len(financialRows) > 0 {
			series = normalize.NormalizeFinancials(financialRows, s.tables, d)
		}
	}

	// 5. Synthesize the missing half
	data := models.NewProcessedData()
	switch {
	case len(projects) > 0 && series.Len() == 0:
		series = synthesis.FinancialsFromProjects(projects)
		data.Meta.SynthesizedFinancials = true
		s.metrics.ObserveSynthesis("financials")
	case series.Len() > 0 && len(projects) == 0:
		projects = s.synth.ProjectsFromFinancials(series)
		data.Meta.SynthesizedProjects = true
		s.metrics.ObserveSynthesis("projects")
	}

	// 6. Aggregate
	agg := calc.Aggregate(projects, series, d)
	data.KPIs = agg.KPIs
	data.FinancialProjections = series
	data.Projects = projects
	data.CountryTotals = agg.CountryTotals
	data.ProjectTypes = agg.ProjectTypes
	data.Meta.RunID = s.newID()
	data.Meta.FileName = name
	data.Meta.Format = format
	data.Meta.Structure = res.Kind
	data.Meta.RowCount = len(rows)
	data.Meta.ContentHash = hash
	data.Meta.ProcessedAt = s.now()

	// 7. Store
	if s.cache != nil {
		if err := s.cache.Set(ctx, hash, data); err != nil {
			log.WithError(err).Warn("result cache write failed", nil)
		}
	}
	s.persist(ctx, data, log)
	return data, nil
}

// persist saves data when a repository is configured. Failures are logged
// and never fail the run.
func (s *IngestionService) persist(ctx context.Context, data *models.ProcessedData, log logger.Logger) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, data); err != nil {
		log.WithError(err).Error("failed to persist ingestion result", map[string]interface{}{"run_id": data.Meta.RunID})
	}
}
