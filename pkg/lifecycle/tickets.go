package lifecycle

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/schoolops/assettrack/pkg/asset"
)

// allowedTicketMoves is the repair workflow: forward-only, with triage
// allowed to jump straight to resolved for trivial fixes.
var allowedTicketMoves = map[asset.RepairStatus][]asset.RepairStatus{
	asset.RepairTriage:     {asset.RepairInProgress, asset.RepairResolved},
	asset.RepairInProgress: {asset.RepairResolved},
}

func validateTicketMove(from, to asset.RepairStatus) error {
	for _, allowed := range allowedTicketMoves[from] {
		if to == allowed {
			return nil
		}
	}
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("repair ticket cannot move from %s to %s", from, to),
	}
}

// UpdateRepairTicket advances a repair ticket through the workflow.
// Resolving a ticket stamps ResolvedAt and returns the asset to the
// available pool: a maintenance asset (parked there by a loaner swap)
// becomes available again, and a needs_repair condition is cleared.
// Retired assets are left untouched.
func (e *Engine) UpdateRepairTicket(ctx context.Context, id string, status asset.RepairStatus) (*asset.RepairTicket, error) {
	if !status.Valid() {
		return nil, &Error{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("unknown repair status %q", status),
		}
	}

	now := e.now().UTC()
	var out *asset.RepairTicket
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t asset.RepairTicket
		if err := tx.Where("id = ?", id).First(&t).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errTicketNotFound(id)
			}
			return fmt.Errorf("load repair ticket: %w", err)
		}
		if err := validateTicketMove(t.Status, status); err != nil {
			return err
		}

		t.Status = status
		if status == asset.RepairResolved {
			t.ResolvedAt = &now
			if err := e.restoreRepairedAsset(tx, t.AssetTag, now); err != nil {
				return err
			}
		}
		if err := tx.Save(&t).Error; err != nil {
			return fmt.Errorf("save repair ticket: %w", err)
		}
		out = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("repair ticket updated",
		"ticketID", out.ID,
		"tag", out.AssetTag,
		"status", string(out.Status))
	return out, nil
}

// restoreRepairedAsset puts an asset back into circulation when its ticket
// resolves.
func (e *Engine) restoreRepairedAsset(tx *gorm.DB, tag string, now time.Time) error {
	var a asset.Asset
	if err := tx.Where("tag = ?", tag).First(&a).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return fmt.Errorf("load repaired asset: %w", err)
	}
	if a.Status == asset.StatusRetired {
		return nil
	}

	changed := false
	if a.Status == asset.StatusMaintenance {
		if err := e.machine.ValidateTransition(OpRepair, a.Status, asset.StatusAvailable); err != nil {
			return err
		}
		a.Status = asset.StatusAvailable
		changed = true
	}
	if a.Condition == asset.ConditionNeedsRepair {
		a.Condition = asset.ConditionGood
		changed = true
	}
	if !changed {
		return nil
	}

	a.UpdatedAt = now
	if err := tx.Save(&a).Error; err != nil {
		return fmt.Errorf("restore repaired asset: %w", err)
	}
	return nil
}
