package asset

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CheckoutStore provides operations for checkout history records.
// The table is append-only apart from the single check-in mutation; the
// lifecycle engine is the only writer.
type CheckoutStore struct {
	db *gorm.DB
}

// NewCheckoutStore creates a new CheckoutStore.
func NewCheckoutStore(db *gorm.DB) *CheckoutStore {
	return &CheckoutStore{db: db}
}

// Create inserts a new checkout record.
func (s *CheckoutStore) Create(c *Checkout) error {
	if err := s.db.Create(c).Error; err != nil {
		return fmt.Errorf("create checkout: %w", err)
	}
	return nil
}

// OpenFor returns the open checkout for an asset, or nil, nil if the asset
// has no open checkout. The engine guarantees at most one exists.
func (s *CheckoutStore) OpenFor(tag string) (*Checkout, error) {
	var c Checkout
	err := s.db.Where("asset_tag = ? AND checkin_at IS NULL", tag).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get open checkout: %w", err)
	}
	return &c, nil
}

// CheckoutState filters checkout history listings.
type CheckoutState string

const (
	CheckoutStateAll    CheckoutState = "all"
	CheckoutStateOpen   CheckoutState = "open"
	CheckoutStateClosed CheckoutState = "closed"
)

// CheckoutFilter defines filters for listing checkout history.
type CheckoutFilter struct {
	AssetTag string
	State    CheckoutState
}

// List returns paginated checkout records, newest first. pageToken is an
// RFC3339Nano timestamp; records with checkout_at < pageToken are returned.
func (s *CheckoutStore) List(filter CheckoutFilter, pageSize int, pageToken string) ([]Checkout, string, int, error) {
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Checkout{})
		if filter.AssetTag != "" {
			q = q.Where("asset_tag = ?", filter.AssetTag)
		}
		switch filter.State {
		case CheckoutStateOpen:
			q = q.Where("checkin_at IS NULL")
		case CheckoutStateClosed:
			q = q.Where("checkin_at IS NOT NULL")
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count checkouts: %w", err)
	}

	query := buildQuery(s.db).Order("checkout_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("checkout_at < ?", t)
	}

	var records []Checkout
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list checkouts: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CheckoutAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// ListOpen returns every open checkout, newest first. Used by exports.
func (s *CheckoutStore) ListOpen() ([]Checkout, error) {
	var records []Checkout
	err := s.db.
		Where("checkin_at IS NULL").
		Order("checkout_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list open checkouts: %w", err)
	}
	return records, nil
}

// ListOverdue returns open checkouts whose expected return date has passed,
// oldest due date first.
func (s *CheckoutStore) ListOverdue(now time.Time) ([]Checkout, error) {
	var records []Checkout
	err := s.db.
		Where("checkin_at IS NULL AND expected_return_at IS NOT NULL AND expected_return_at < ?", now).
		Order("expected_return_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list overdue checkouts: %w", err)
	}
	return records, nil
}
