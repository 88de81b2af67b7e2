package asset

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides CRUD operations for assets.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new asset Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the asset-related tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Asset{}); err != nil {
		return fmt.Errorf("auto-migrate assets: %w", err)
	}
	if err := s.db.AutoMigrate(&Checkout{}); err != nil {
		return fmt.Errorf("auto-migrate checkouts: %w", err)
	}
	if err := s.db.AutoMigrate(&RepairTicket{}); err != nil {
		return fmt.Errorf("auto-migrate repair_tickets: %w", err)
	}
	if err := s.db.AutoMigrate(&DamageIncident{}); err != nil {
		return fmt.Errorf("auto-migrate damage_incidents: %w", err)
	}
	return nil
}

// Get retrieves an asset by tag. Returns nil, nil if no asset exists.
func (s *Store) Get(tag string) (*Asset, error) {
	var a Asset
	err := s.db.Where("tag = ?", tag).First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}

// Create inserts a new asset. The tag must be unique; a duplicate tag fails
// on the primary key. UpdatedAt is stamped if the caller left it zero.
func (s *Store) Create(a *Asset) error {
	if a.Status == "" {
		a.Status = StatusAvailable
	}
	if a.Condition == "" {
		a.Condition = ConditionGood
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// Save persists the full asset record. Callers are responsible for
// refreshing UpdatedAt when the save represents a user-visible mutation.
func (s *Store) Save(a *Asset) error {
	if err := s.db.Save(a).Error; err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

// ListFilter defines filters for listing assets.
type ListFilter struct {
	Status         Status
	Category       string
	Type           string
	Search         string // matches tag, name, or serial number
	IncludeRetired bool
}

// List returns paginated assets matching the filter, ordered by tag.
// Retired assets are excluded unless IncludeRetired is set or the status
// filter asks for them explicitly. pageToken is the tag of the last record
// from the previous page; pass "" for the first page.
func (s *Store) List(filter ListFilter, pageSize int, pageToken string) ([]Asset, string, int, error) {
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Asset{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		} else if !filter.IncludeRetired {
			q = q.Where("status <> ?", StatusRetired)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("tag LIKE ? OR name LIKE ? OR serial_number LIKE ?", like, like, like)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count assets: %w", err)
	}

	query := buildQuery(s.db).Order("tag ASC").Limit(pageSize + 1)
	if pageToken != "" {
		query = query.Where("tag > ?", pageToken)
	}

	var records []Asset
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list assets: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].Tag
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// Search returns up to limit assets whose tag, name, or serial number
// matches the query, excluding retired assets.
func (s *Store) Search(q string, limit int) ([]Asset, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	like := "%" + q + "%"
	var records []Asset
	err := s.db.
		Where("status <> ?", StatusRetired).
		Where("tag LIKE ? OR name LIKE ? OR serial_number LIKE ?", like, like, like).
		Order("tag ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
	}
	return records, nil
}

// ListForExport returns all non-retired assets ordered by tag, for a sync
// push pass.
func (s *Store) ListForExport() ([]Asset, error) {
	var records []Asset
	err := s.db.Where("status <> ?", StatusRetired).Order("tag ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list assets for export: %w", err)
	}
	return records, nil
}

// CountByStatus returns the number of assets per status.
func (s *Store) CountByStatus() (map[Status]int, error) {
	type row struct {
		Status Status
		N      int
	}
	var rows []row
	err := s.db.Model(&Asset{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count assets by status: %w", err)
	}
	counts := make(map[Status]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
