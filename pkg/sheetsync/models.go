package sheetsync

import "time"

// Direction of a sync pass.
type Direction string

const (
	DirectionPull          Direction = "pull"
	DirectionPush          Direction = "push"
	DirectionBidirectional Direction = "bidirectional"
)

// Valid reports whether d is a known sync direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionPull, DirectionPush, DirectionBidirectional:
		return true
	}
	return false
}

// Pass outcome statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SyncLog records one sync pass, success or failure. Entries are append-only.
type SyncLog struct {
	ID               string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Direction        Direction `gorm:"column:direction;not null"`
	Status           string    `gorm:"column:status;not null"`
	Message          string    `gorm:"column:message"`
	RecordsProcessed int       `gorm:"column:records_processed;not null"`
	ErrorCount       int       `gorm:"column:error_count;not null"`
	ConflictCount    int       `gorm:"column:conflict_count;not null"`
	DurationMs       int64     `gorm:"column:duration_ms;not null"`
	StartedAt        time.Time `gorm:"column:started_at;index:idx_synclog_started;not null"`
}

// TableName returns the GORM table name.
func (SyncLog) TableName() string { return "sync_logs" }
