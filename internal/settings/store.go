// Package settings is the node's persistent key/value store.
//
// It holds the few values that must survive a reboot: how many times the
// node has booted and the device identifier presented to the broker.
// Button and LED history are never stored.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/ionode/internal/infrastructure/database"
)

// Well-known keys.
const (
	KeyBootCount = "boot_count"
	KeyDeviceID  = "device_id"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("settings: key not found")

// Store reads and writes the settings table.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// New creates a Store on a migrated database.
func New(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// IncrementBootCount adds one to the boot counter and returns the new value.
// A missing or corrupt counter restarts at 1.
func (s *Store) IncrementBootCount(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var raw string
	count := 0
	err = tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", KeyBootCount).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("reading boot count: %w", err)
	default:
		if n, convErr := strconv.Atoi(raw); convErr == nil && n >= 0 {
			count = n
		}
	}
	count++

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, KeyBootCount, strconv.Itoa(count), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("writing boot count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing boot count: %w", err)
	}
	return count, nil
}

// DeviceID returns the persisted device identifier, generating and
// storing a new one on first boot.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, err := s.Get(ctx, KeyDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = "ionode-" + uuid.NewString()
	if err := s.Set(ctx, KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
