package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/participadf/ouvidoria/internal/manifestation"
)

// PutDraft writes rec into its slot, replacing whatever was there.
func PutDraft(ctx context.Context, db *sql.DB, rec manifestation.DraftRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO drafts (id, updated_at, data_json)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			data_json  = excluded.data_json
	`
	_, err = db.ExecContext(ctx, query, rec.ID, rec.UpdatedAt.UTC().Format(time.RFC3339Nano), string(data))
	return err
}

// GetDraft reads the slot id. It returns (nil, nil) when the slot is empty.
func GetDraft(ctx context.Context, db *sql.DB, id string) (*manifestation.DraftRecord, error) {
	var updatedAt, dataJSON string
	err := db.QueryRowContext(ctx, `SELECT updated_at, data_json FROM drafts WHERE id = ?`, id).
		Scan(&updatedAt, &dataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &manifestation.DraftRecord{ID: id}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteDraft empties the slot id. Deleting an empty slot is not an error.
func DeleteDraft(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	return err
}

// IsBusy reports whether err is a transient SQLite lock error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// SQLite returns "database is locked" (SQLITE_BUSY) or "database table is locked"
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
