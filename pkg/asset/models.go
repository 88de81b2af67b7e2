package asset

import (
	"time"
)

// Status represents the lifecycle status of an asset.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusCheckedOut  Status = "checked_out"
	StatusDeployed    Status = "deployed"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusCheckedOut, StatusDeployed, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

// Condition represents the physical condition of an asset.
type Condition string

const (
	ConditionGood        Condition = "good"
	ConditionFair        Condition = "fair"
	ConditionNeedsRepair Condition = "needs_repair"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGood, ConditionFair, ConditionNeedsRepair:
		return true
	}
	return false
}

// Asset is the GORM model for a tracked inventory item. The tag is the
// stable external identifier; it never changes after creation.
//
// UpdatedAt is maintained by the stores and the lifecycle engine rather than
// by GORM, because it doubles as the conflict-resolution key for sheet sync
// and must sometimes be set from the external row's marker.
type Asset struct {
	Tag                string     `gorm:"primaryKey;column:tag;type:varchar(50)"`
	Name               string     `gorm:"column:name;not null"`
	Category           string     `gorm:"column:category;index:idx_asset_category;not null"`
	Type               string     `gorm:"column:type;not null"`
	SerialNumber       string     `gorm:"column:serial_number;index:idx_asset_serial"`
	Status             Status     `gorm:"column:status;index:idx_asset_status;default:available;not null"`
	Condition          Condition  `gorm:"column:condition;default:good;not null"`
	Location           string     `gorm:"column:location"`
	Notes              string     `gorm:"column:notes"`
	PurchaseDate       *time.Time `gorm:"column:purchase_date"`
	PurchaseCost       *float64   `gorm:"column:purchase_cost"`
	SheetRowRef        string     `gorm:"column:sheet_row_ref"`
	RepeatBreakageFlag bool       `gorm:"column:repeat_breakage_flag;default:false;not null"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName returns the GORM table name.
func (Asset) TableName() string { return "assets" }

// IsOut returns true if the asset's status implies an open checkout.
func (a *Asset) IsOut() bool {
	return a.Status == StatusCheckedOut || a.Status == StatusDeployed
}

// Checkout is one checkout/check-in cycle for an asset. Records are
// append-only: created by a checkout operation and mutated exactly once, by
// the matching check-in, which stamps CheckinAt. A nil CheckinAt means the
// checkout is open and the asset is away from the available pool.
type Checkout struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	AssetTag         string     `gorm:"column:asset_tag;index:idx_checkout_asset,priority:1;not null"`
	Recipient        string     `gorm:"column:recipient;not null"`
	IssuedBy         string     `gorm:"column:issued_by;not null"`
	CheckoutAt       time.Time  `gorm:"column:checkout_at;not null"`
	ExpectedReturnAt *time.Time `gorm:"column:expected_return_at"`
	CheckinAt        *time.Time `gorm:"column:checkin_at;index:idx_checkout_asset,priority:2"`
	CheckinCondition Condition  `gorm:"column:checkin_condition"`
	CheckinNotes     string     `gorm:"column:checkin_notes"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Checkout) TableName() string { return "checkouts" }

// IsOpen returns true if the checkout has not been checked in yet.
func (c *Checkout) IsOpen() bool { return c.CheckinAt == nil }

// IsOverdue returns true if the checkout is open and past its expected return.
func (c *Checkout) IsOverdue(now time.Time) bool {
	return c.IsOpen() && c.ExpectedReturnAt != nil && c.ExpectedReturnAt.Before(now)
}

// RepairStatus represents the workflow state of a repair ticket.
type RepairStatus string

const (
	RepairTriage     RepairStatus = "triage"
	RepairInProgress RepairStatus = "in_progress"
	RepairResolved   RepairStatus = "resolved"
)

// Valid reports whether s is a known repair workflow state.
func (s RepairStatus) Valid() bool {
	switch s {
	case RepairTriage, RepairInProgress, RepairResolved:
		return true
	}
	return false
}

// RepairTicket tracks an asset through the repair pipeline. Tickets are
// auto-created when an asset comes back in needs_repair condition; at most
// one unresolved ticket exists per asset.
type RepairTicket struct {
	ID         string       `gorm:"primaryKey;column:id;type:varchar(36)"`
	AssetTag   string       `gorm:"column:asset_tag;index:idx_repair_asset,priority:1;not null"`
	Status     RepairStatus `gorm:"column:status;index:idx_repair_asset,priority:2;default:triage;not null"`
	Notes      string       `gorm:"column:notes"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime"`
	ResolvedAt *time.Time   `gorm:"column:resolved_at"`
}

// TableName returns the GORM table name.
func (RepairTicket) TableName() string { return "repair_tickets" }

// DamageIncident is an immutable record of a needs_repair event, used for
// repeat-breakage tracking on assets.
type DamageIncident struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	AssetTag   string    `gorm:"column:asset_tag;index:idx_damage_asset_time,priority:1;not null"`
	Recipient  string    `gorm:"column:recipient;not null"`
	Source     string    `gorm:"column:source;not null"` // checkin, loaner_swap
	Notes      string    `gorm:"column:notes"`
	CheckoutID string    `gorm:"column:checkout_id"`
	IncidentAt time.Time `gorm:"column:incident_at;index:idx_damage_asset_time,priority:2;not null"`
}

// TableName returns the GORM table name.
func (DamageIncident) TableName() string { return "damage_incidents" }
