package asset

import (
	"fmt"

	"gorm.io/gorm"
)

// TicketFilter narrows a repair ticket listing.
type TicketFilter struct {
	AssetTag string
	Status   RepairStatus
}

// TicketStore persists repair tickets. Tickets are opened by the lifecycle
// engine on needs_repair check-ins and worked through the triage ->
// in_progress -> resolved workflow.
type TicketStore struct {
	db *gorm.DB
}

// NewTicketStore creates a TicketStore backed by the given database.
func NewTicketStore(db *gorm.DB) *TicketStore {
	return &TicketStore{db: db}
}

// Get returns one ticket, or nil if it does not exist.
func (s *TicketStore) Get(id string) (*RepairTicket, error) {
	var t RepairTicket
	err := s.db.Where("id = ?", id).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get repair ticket: %w", err)
	}
	return &t, nil
}

// List returns tickets newest first, optionally filtered by asset tag and
// workflow status.
func (s *TicketStore) List(filter TicketFilter) ([]RepairTicket, error) {
	query := s.db.Order("created_at DESC")
	if filter.AssetTag != "" {
		query = query.Where("asset_tag = ?", filter.AssetTag)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var tickets []RepairTicket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("list repair tickets: %w", err)
	}
	return tickets, nil
}
