package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolops/assettrack/pkg/asset"
)

const (
	// RepeatBreakageWindow is how far back damage incidents count toward
	// the repeat-breakage flag.
	RepeatBreakageWindow = 180 * 24 * time.Hour
	// RepeatBreakageThreshold is the incident count within the window at
	// which an asset is flagged as a repeat breaker.
	RepeatBreakageThreshold = 3
)

// handleNeedsRepair runs inside an engine transaction whenever an asset
// comes back in needs_repair condition. It records a damage incident,
// guarantees an open repair ticket, and refreshes the repeat-breakage flag.
func (e *Engine) handleNeedsRepair(tx *gorm.DB, tag string, c *asset.Checkout, source, notes string, now time.Time) error {
	incident := &asset.DamageIncident{
		ID:         uuid.New().String(),
		AssetTag:   tag,
		Recipient:  c.Recipient,
		Source:     source,
		Notes:      notes,
		CheckoutID: c.ID,
		IncidentAt: now,
	}
	if err := tx.Create(incident).Error; err != nil {
		return fmt.Errorf("record damage incident: %w", err)
	}

	if err := ensureOpenRepairTicket(tx, tag, notes, now); err != nil {
		return err
	}

	flagged, err := refreshRepeatBreakageFlag(tx, tag, now)
	if err != nil {
		return err
	}
	if flagged {
		e.logger.Warn("asset flagged for repeat breakage",
			"tag", tag,
			"window", RepeatBreakageWindow.String(),
			"threshold", RepeatBreakageThreshold)
	}
	return nil
}

// ensureOpenRepairTicket opens a repair ticket for the asset unless one is
// already unresolved; repeated damage reports funnel into the existing
// ticket rather than piling up duplicates.
func ensureOpenRepairTicket(tx *gorm.DB, tag, notes string, now time.Time) error {
	var existing asset.RepairTicket
	err := tx.Where("asset_tag = ? AND status <> ?", tag, asset.RepairResolved).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("check open repair ticket: %w", err)
	}

	if notes == "" {
		notes = "Reported needing repair at check-in."
	}
	ticket := &asset.RepairTicket{
		ID:        uuid.New().String(),
		AssetTag:  tag,
		Status:    asset.RepairTriage,
		Notes:     notes,
		CreatedAt: now,
	}
	if err := tx.Create(ticket).Error; err != nil {
		return fmt.Errorf("create repair ticket: %w", err)
	}
	return nil
}

// refreshRepeatBreakageFlag recomputes the repeat-breakage flag from the
// incident history and persists it when it changes. Returns whether the
// asset newly crossed the threshold.
func refreshRepeatBreakageFlag(tx *gorm.DB, tag string, now time.Time) (bool, error) {
	var count int64
	cutoff := now.Add(-RepeatBreakageWindow)
	err := tx.Model(&asset.DamageIncident{}).
		Where("asset_tag = ? AND incident_at >= ?", tag, cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count damage incidents: %w", err)
	}

	flag := count >= RepeatBreakageThreshold
	var a asset.Asset
	if err := tx.Select("repeat_breakage_flag").Where("tag = ?", tag).First(&a).Error; err != nil {
		return false, fmt.Errorf("load breakage flag: %w", err)
	}
	if a.RepeatBreakageFlag == flag {
		return false, nil
	}
	if err := tx.Model(&asset.Asset{}).Where("tag = ?", tag).
		Update("repeat_breakage_flag", flag).Error; err != nil {
		return false, fmt.Errorf("update breakage flag: %w", err)
	}
	return flag, nil
}
