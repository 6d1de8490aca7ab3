package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/drosenbaum/shiurcast/internal/domain"
)

// Les réglages sont stockés en un seul blob JSON sous une clé fixe; il n'y a
// qu'un appareil, donc une seule ligne.
const settingsRow = "device"

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, settingsRow).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Premier lancement: rien d'écrit encore.
		return domain.DefaultSettings(), nil
	case err != nil:
		return domain.Settings{}, err
	}

	s := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil {
		// Blob illisible: on repart des défauts plutôt que de bloquer.
		return domain.DefaultSettings(), nil
	}
	return s, nil
}

func (r *SettingsRepository) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return domain.Settings{}, err
	}
	const upsert = `
		INSERT INTO settings(key, value_json, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, upsert, settingsRow, raw, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
