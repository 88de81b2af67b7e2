package sheetsync

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LogStore persists sync pass records.
type LogStore struct {
	db *gorm.DB
}

// NewLogStore creates a LogStore backed by the given database.
func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// AutoMigrate creates or updates the sync_logs table.
func (s *LogStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&SyncLog{}); err != nil {
		return fmt.Errorf("auto-migrate sync_logs: %w", err)
	}
	return nil
}

// Create appends a sync log entry.
func (s *LogStore) Create(entry *SyncLog) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// Latest returns the most recent entry, or nil if no pass has run yet.
func (s *LogStore) Latest() (*SyncLog, error) {
	var entry SyncLog
	err := s.db.Order("started_at DESC").First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest sync log: %w", err)
	}
	return &entry, nil
}

// List returns entries newest first with timestamp-token pagination.
func (s *LogStore) List(pageSize int, pageToken string) ([]SyncLog, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	query := s.db.Order("started_at DESC")
	if pageToken != "" {
		cursor, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("started_at < ?", cursor)
	}

	var entries []SyncLog
	if err := query.Limit(pageSize + 1).Find(&entries).Error; err != nil {
		return nil, "", fmt.Errorf("list sync logs: %w", err)
	}

	nextToken := ""
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		nextToken = entries[len(entries)-1].StartedAt.Format(time.RFC3339Nano)
	}
	return entries, nextToken, nil
}
