package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/models"
)

// DBTX is the subset of *pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResultRepo persists ingestion results.
type ResultRepo struct {
	db DBTX
}

// NewResultRepo creates a new repository instance.
func NewResultRepo(db DBTX) *ResultRepo {
	return &ResultRepo{db: db}
}

// Save upserts a result keyed by its run ID.
func (r *ResultRepo) Save(ctx context.Context, data *models.ProcessedData) error {
	if r.db == nil {
		return apperrors.NewStorageError("save", fmt.Errorf("database pool not initialized"))
	}
	if data == nil || data.Meta.RunID == "" {
		return apperrors.NewStorageError("save", fmt.Errorf("result has no run id"))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return apperrors.NewStorageError("save", fmt.Errorf("failed to marshal result: %w", err))
	}

	createdAt := data.Meta.ProcessedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingestion_results (run_id, content_hash, file_name, structure, result_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id)
		DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			file_name = EXCLUDED.file_name,
			structure = EXCLUDED.structure,
			result_json = EXCLUDED.result_json,
			created_at = EXCLUDED.created_at;
	`

	_, err = r.db.Exec(ctx, query,
		data.Meta.RunID, data.Meta.ContentHash, data.Meta.FileName, string(data.Meta.Structure), jsonData, createdAt)
	if err != nil {
		return apperrors.NewStorageError("save", err)
	}
	return nil
}

// Load retrieves a result by run ID.
func (r *ResultRepo) Load(ctx context.Context, runID string) (*models.ProcessedData, error) {
	if r.db == nil {
		return nil, apperrors.NewStorageError("load", fmt.Errorf("database pool not initialized"))
	}

	query := `SELECT result_json FROM ingestion_results WHERE run_id = $1`

	var jsonData []byte
	if err := r.db.QueryRow(ctx, query, runID).Scan(&jsonData); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("ingestion result", runID)
		}
		return nil, apperrors.NewStorageError("load", err)
	}

	var data models.ProcessedData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, apperrors.NewStorageError("load", fmt.Errorf("failed to unmarshal result: %w", err))
	}
	return &data, nil
}
