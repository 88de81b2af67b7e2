package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Event is one recorded API mutation: who did what to which asset, and
// whether it succeeded.
type Event struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Actor      string    `gorm:"size:255;index" json:"actor"`
	Role       string    `gorm:"size:32" json:"role"`
	Action     string    `gorm:"size:64;index" json:"action"`
	Resource   string    `gorm:"size:64" json:"resource"`
	AssetTag   string    `gorm:"size:64;index" json:"assetTag,omitempty"`
	Method     string    `gorm:"size:8" json:"method"`
	Path       string    `gorm:"size:512" json:"path"`
	Outcome    string    `gorm:"size:16" json:"outcome"`
	StatusCode int       `json:"statusCode"`
	RequestID  string    `gorm:"size:64" json:"requestId,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName overrides the GORM default.
func (Event) TableName() string {
	return "audit_events"
}

// ListFilter narrows an event listing.
type ListFilter struct {
	Actor    string
	Action   string
	AssetTag string
	Outcome  string
}

// Store persists audit events.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Event{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append writes a single event.
func (s *Store) Append(e *Event) error {
	if err := s.db.Create(e).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByID returns one event, or nil if it does not exist.
func (s *Store) GetByID(id string) (*Event, error) {
	var e Event
	err := s.db.Where("id = ?", id).First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return &e, nil
}

// List returns events newest first with timestamp-token pagination.
func (s *Store) List(filter ListFilter, pageSize int, pageToken string) ([]Event, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	base := s.db.Model(&Event{})
	if filter.Actor != "" {
		base = base.Where("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		base = base.Where("action = ?", filter.Action)
	}
	if filter.AssetTag != "" {
		base = base.Where("asset_tag = ?", filter.AssetTag)
	}
	if filter.Outcome != "" {
		base = base.Where("outcome = ?", filter.Outcome)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := base.Session(&gorm.Session{}).Order("created_at DESC")
	if pageToken != "" {
		cursor, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", cursor)
	}

	var events []Event
	if err := query.Limit(pageSize + 1).Find(&events).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	nextToken := ""
	if len(events) > pageSize {
		events = events[:pageSize]
		nextToken = events[len(events)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return events, nextToken, int(total), nil
}

// DeleteOlderThan removes events created before the cutoff. Returns the
// number of rows deleted.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&Event{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
