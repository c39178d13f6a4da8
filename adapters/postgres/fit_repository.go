package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"metabias/domain/core"
	"metabias/domain/model"
	"metabias/ports"

	"github.com/jmoiron/sqlx"
)

// FitRepository implements ports.FitRepository for PostgreSQL. The full record
// is kept as JSONB; the listing columns are duplicated for queries.
type FitRepository struct {
	db *sqlx.DB
}

var _ ports.FitRepository = (*FitRepository)(nil)

// NewFitRepository creates a new PostgreSQL fit repository
func NewFitRepository(db *sqlx.DB) *FitRepository {
	return &FitRepository{db: db}
}

type fitRow struct {
	ID          string    `db:"id"`
	CreatedAt   time.Time `db:"created_at"`
	Regime      string    `db:"regime"`
	Studies     int       `db:"studies"`
	DataHash    string    `db:"data_hash"`
	Fingerprint string    `db:"fingerprint"`
	Payload     []byte    `db:"payload"`
}

func toRow(fit *model.FittedModel) (fitRow, error) {
	payload, err := json.Marshal(fit)
	if err != nil {
		return fitRow{}, fmt.Errorf("failed to marshal fit %s: %w", fit.ID, err)
	}
	return fitRow{
		ID:          fit.ID.String(),
		CreatedAt:   fit.CreatedAt.Time(),
		Regime:      fit.Regime.String(),
		Studies:     fit.Studies(),
		DataHash:    fit.DataHash.String(),
		Fingerprint: fit.Fingerprint.String(),
		Payload:     payload,
	}, nil
}

func (r fitRow) toModel() (*model.FittedModel, error) {
	var fit model.FittedModel
	if err := json.Unmarshal(r.Payload, &fit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fit %s: %w", r.ID, err)
	}
	if fit.ID.String() != r.ID {
		return nil, fmt.Errorf("fit %s: payload carries id %s", r.ID, fit.ID)
	}
	return &fit, nil
}

func (r fitRow) summary() ports.FitSummary {
	return ports.FitSummary{
		ID:          core.FitID(r.ID),
		CreatedAt:   core.NewTimestamp(r.CreatedAt.UTC()),
		Regime:      r.Regime,
		Studies:     r.Studies,
		Fingerprint: core.Hash(r.Fingerprint),
	}
}

// Save inserts a fit. Fits are immutable, so an existing id is an error.
func (r *FitRepository) Save(ctx context.Context, fit *model.FittedModel) error {
	row, err := toRow(fit)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO fits (id, created_at, regime, studies, data_hash, fingerprint, payload)
		VALUES (:id, :created_at, :regime, :studies, :data_hash, :fingerprint, :payload)`, row)
	if err != nil {
		return fmt.Errorf("failed to insert fit %s: %w", fit.ID, err)
	}
	return nil
}

// Get retrieves a fit by ID
func (r *FitRepository) Get(ctx context.Context, id core.FitID) (*model.FittedModel, error) {
	var row fitRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, created_at, regime, studies, data_hash, fingerprint, payload
		FROM fits
		WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w with id %s", core.ErrFitNotFound, id)
		}
		return nil, fmt.Errorf("failed to get fit %s: %w", id, err)
	}
	return row.toModel()
}

// List returns the most recent fits first
func (r *FitRepository) List(ctx context.Context, limit int) ([]ports.FitSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []fitRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, regime, studies, data_hash, fingerprint
		FROM fits
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fits: %w", err)
	}
	out := make([]ports.FitSummary, len(rows))
	for i, row := range rows {
		out[i] = row.summary()
	}
	return out, nil
}

// FindByFingerprint returns the ids of fits with the same configuration,
// newest first.
func (r *FitRepository) FindByFingerprint(ctx context.Context, fp core.Hash) ([]core.FitID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM fits WHERE fingerprint = $1 ORDER BY created_at DESC`, fp.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query fits by fingerprint: %w", err)
	}
	out := make([]core.FitID, len(ids))
	for i, id := range ids {
		out[i] = core.FitID(id)
	}
	return out, nil
}
