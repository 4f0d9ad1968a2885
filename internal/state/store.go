// Package state persists stream session state across daemon restarts
// and drives the fast/full restoration flows.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/audiolink/wavebridge/internal/database"
)

// Durable state keys.
const (
	// KeyStreamActive records the user's playback intent.
	KeyStreamActive = "streamActive"
	// KeyStreamState holds the JSON session snapshot.
	KeyStreamState = "currentStreamState"
	// KeyStreamFormat holds the last negotiated format id.
	KeyStreamFormat = "streamFormat"
)

// Entry is a single durable key/value pair.
type Entry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName overrides the GORM default.
func (Entry) TableName() string {
	return "app_state"
}

// Store is the durable key/value store backing session persistence.
type Store struct {
	db     *database.DB
	logger *slog.Logger
}

// NewStore creates the store and migrates its schema.
func NewStore(db *database.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating state schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Get returns the value for key. The second return is false when the
// key has never been written.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading state key %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set writes key to value, creating or updating as needed.
func (s *Store) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("writing state key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("deleting state key %q: %w", key, err)
	}
	return nil
}
