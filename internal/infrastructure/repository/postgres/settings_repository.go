package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/rag-context-engine/internal/core/domain"
)

const settingsKey = "retrieval"

// SettingsRepository serves the per-run settings snapshot. Operator
// overrides live as one JSON document in the retrieval_settings table
// and are layered over the configured base on every read.
type SettingsRepository struct {
	db   *sql.DB
	base domain.RetrievalSettings
}

func NewSettingsRepository(db *sql.DB, base domain.RetrievalSettings) *SettingsRepository {
	return &SettingsRepository{db: db, base: base}
}

func (r *SettingsRepository) Snapshot(ctx context.Context) (domain.RetrievalSettings, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM retrieval_settings WHERE key = $1`, settingsKey)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.base, nil
		}
		return domain.RetrievalSettings{}, fmt.Errorf("query retrieval settings: %w", err)
	}

	out := r.base
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.RetrievalSettings{}, fmt.Errorf("unmarshal retrieval settings: %w", err)
	}
	return out, nil
}

// Save stores the operator override document.
func (r *SettingsRepository) Save(ctx context.Context, settings domain.RetrievalSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal retrieval settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO retrieval_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, settingsKey, raw)
	if err != nil {
		return fmt.Errorf("save retrieval settings: %w", err)
	}
	return nil
}
