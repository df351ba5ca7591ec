package draft

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/participadf/ouvidoria/internal/db"
	"github.com/participadf/ouvidoria/internal/errors"
	"github.com/participadf/ouvidoria/internal/manifestation"
)

// Store is the durable single-slot draft store. Writes overwrite the slot.
type Store struct {
	db      *sql.DB
	key     string
	now     func() time.Time
	backoff func() backoff.BackOff
}

// NewStore creates a Store over an initialized database (see db.Init).
func NewStore(database *sql.DB) *Store {
	return &Store{
		db:      database,
		key:     manifestation.DraftKey,
		now:     time.Now,
		backoff: newBusyBackoff,
	}
}

// newBusyBackoff bounds retries of a locked database to about one second.
func newBusyBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = time.Second
	return bo
}

// Save overwrites the slot with snap, stamped with the current time.
func (s *Store) Save(ctx context.Context, snap manifestation.DraftSnapshot) error {
	rec := manifestation.DraftRecord{ID: s.key, UpdatedAt: s.now(), Data: snap}
	if err := s.retry(ctx, func() error { return db.PutDraft(ctx, s.db, rec) }); err != nil {
		return errors.NewDraftPersistence("save", err)
	}
	return nil
}

// Load returns the stored draft, or nil when the slot is empty.
// The returned snapshot never carries attachments.
func (s *Store) Load(ctx context.Context) (*manifestation.DraftRecord, error) {
	var rec *manifestation.DraftRecord
	err := s.retry(ctx, func() error {
		var err error
		rec, err = db.GetDraft(ctx, s.db, s.key)
		return err
	})
	if err != nil {
		return nil, errors.NewDraftPersistence("load", err)
	}
	return rec, nil
}

// Clear empties the slot. Clearing an empty slot succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.retry(ctx, func() error { return db.DeleteDraft(ctx, s.db, s.key) }); err != nil {
		return errors.NewDraftPersistence("clear", err)
	}
	return nil
}

// retry runs op, retrying only while SQLite reports the database as locked.
func (s *Store) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if db.IsBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(s.backoff(), ctx))
}
