package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schoolops/assettrack/pkg/asset"
)

// DefaultDeploymentTerm is the expected-return horizon applied to a
// deployment checkout when the caller gives no explicit return date.
const DefaultDeploymentTerm = 365 * 24 * time.Hour

// loanerSwapMarker prefixes the check-in notes written for the broken asset
// during a loaner swap.
const loanerSwapMarker = "LOANER SWAP"

// Engine owns all mutations of asset status and checkout records. Every
// operation runs in a single database transaction and either applies fully
// or leaves no trace; precondition checks are re-validated with conditional
// updates so that concurrent callers resolve to exactly one winner.
type Engine struct {
	db        *gorm.DB
	assets    *asset.Store
	checkouts *asset.CheckoutStore
	machine   *Machine
	logger    *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewEngine creates a lifecycle engine over the given database handle.
func NewEngine(db *gorm.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:        db,
		assets:    asset.NewStore(db),
		checkouts: asset.NewCheckoutStore(db),
		machine:   NewMachine(),
		logger:    logger,
		now:       time.Now,
	}
}

// CheckoutRequest describes a checkout operation.
type CheckoutRequest struct {
	Tag              string
	Recipient        string
	Operator         string
	ExpectedReturnAt *time.Time
	// Deploy marks the checkout as a long-duration deployment; without an
	// explicit return date it defaults to DefaultDeploymentTerm from now.
	Deploy bool
}

// Checkout checks an available asset out to a recipient and returns the ID
// of the created checkout record.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Tag == "" || req.Recipient == "" {
		return "", fmt.Errorf("tag and recipient are required")
	}

	now := e.now().UTC()
	target := asset.StatusCheckedOut
	if req.Deploy {
		target = asset.StatusDeployed
	}

	checkoutID := uuid.New().String()
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a asset.Asset
		if err := tx.Where("tag = ?", req.Tag).First(&a).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errNotFound(req.Tag)
			}
			return fmt.Errorf("load asset: %w", err)
		}
		if a.Status != asset.StatusAvailable {
			return errUnavailable(a.Tag, string(a.Status))
		}
		if err := e.machine.ValidateTransition(OpCheckout, a.Status, target); err != nil {
			return err
		}

		// Conditional update: only one of two racing checkouts can flip the
		// status away from available.
		res := tx.Model(&asset.Asset{}).
			Where("tag = ? AND status = ?", req.Tag, asset.StatusAvailable).
			Updates(map[string]any{"status": target, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("update asset status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errUnavailable(req.Tag, "concurrently checked out")
		}

		expectedReturn := req.ExpectedReturnAt
		if req.Deploy && expectedReturn == nil {
			t := now.Add(DefaultDeploymentTerm)
			expectedReturn = &t
		}

		record := &asset.Checkout{
			ID:               checkoutID,
			AssetTag:         req.Tag,
			Recipient:        req.Recipient,
			IssuedBy:         req.Operator,
			CheckoutAt:       now,
			ExpectedReturnAt: expectedReturn,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("asset checked out",
		"tag", req.Tag,
		"recipient", req.Recipient,
		"operator", req.Operator,
		"status", string(target),
		"checkoutID", checkoutID)
	return checkoutID, nil
}

// Checkin closes the open checkout for an asset, returning it to the
// available pool with the reported condition. A needs_repair condition also
// opens a repair ticket and records a damage incident. Check-in is not
// idempotent: a second call fails with NO_OPEN_CHECKOUT.
func (e *Engine) Checkin(ctx context.Context, tag string, condition asset.Condition, notes string) (*asset.Checkout, error) {
	now := e.now().UTC()

	var closed asset.Checkout
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a asset.Asset
		if err := tx.Where("tag = ?", tag).First(&a).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errNotFound(tag)
			}
			return fmt.Errorf("load asset: %w", err)
		}

		open, err := e.closeOpenCheckout(tx, tag, now, condition, notes)
		if err != nil {
			return err
		}
		closed = *open

		if err := e.machine.ValidateTransition(OpCheckin, a.Status, asset.StatusAvailable); err != nil {
			return err
		}
		res := tx.Model(&asset.Asset{}).
			Where("tag = ?", tag).
			Updates(map[string]any{
				"status":     asset.StatusAvailable,
				"condition":  condition,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update asset: %w", res.Error)
		}

		if condition == asset.ConditionNeedsRepair {
			if err := e.handleNeedsRepair(tx, tag, open, "checkin", notes, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("asset checked in",
		"tag", tag,
		"condition", string(condition),
		"checkoutID", closed.ID)
	return &closed, nil
}

// closeOpenCheckout finds and closes the open checkout for tag inside tx.
// The conditional update guarantees a single closer even under concurrent
// check-ins. Returns the closed record with check-in fields populated.
func (e *Engine) closeOpenCheckout(tx *gorm.DB, tag string, now time.Time, condition asset.Condition, notes string) (*asset.Checkout, error) {
	var open asset.Checkout
	if err := tx.Where("asset_tag = ? AND checkin_at IS NULL", tag).First(&open).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errNoOpenCheckout(tag)
		}
		return nil, fmt.Errorf("load open checkout: %w", err)
	}

	res := tx.Model(&asset.Checkout{}).
		Where("id = ? AND checkin_at IS NULL", open.ID).
		Updates(map[string]any{
			"checkin_at":        now,
			"checkin_condition": condition,
			"checkin_notes":     notes,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("close checkout: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errNoOpenCheckout(tag)
	}

	open.CheckinAt = &now
	open.CheckinCondition = condition
	open.CheckinNotes = notes
	return &open, nil
}

// SwapResult describes the outcome of a completed loaner swap.
type SwapResult struct {
	BrokenTag        string
	LoanerTag        string
	Recipient        string
	ClosedCheckoutID string
	NewCheckoutID    string
}

// LoanerSwap checks in a broken asset (forcing it into maintenance) and
// checks a loaner out to the same recipient, carrying the original expected
// return date over verbatim. Both halves happen in one transaction: if the
// loaner cannot be issued, the broken asset's check-in rolls back too.
func (e *Engine) LoanerSwap(ctx context.Context, brokenTag, loanerTag, operator, issueNotes string) (*SwapResult, error) {
	now := e.now().UTC()

	checkinNotes := loanerSwapMarker
	if issueNotes != "" {
		checkinNotes = loanerSwapMarker + " - " + issueNotes
	}

	result := &SwapResult{BrokenTag: brokenTag, LoanerTag: loanerTag}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var broken asset.Asset
		if err := tx.Where("tag = ?", brokenTag).First(&broken).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errNotFound(brokenTag)
			}
			return fmt.Errorf("load broken asset: %w", err)
		}
		if !broken.IsOut() {
			return errNotCheckedOut(brokenTag)
		}

		var loaner asset.Asset
		if err := tx.Where("tag = ?", loanerTag).First(&loaner).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errNotFound(loanerTag)
			}
			return fmt.Errorf("load loaner asset: %w", err)
		}
		if loaner.Status != asset.StatusAvailable {
			return errLoanerUnavailable(loanerTag, string(loaner.Status))
		}

		if err := e.machine.ValidateTransition(OpLoanerSwap, broken.Status, asset.StatusMaintenance); err != nil {
			return err
		}

		// Step 1: close the broken asset's checkout and park it in
		// maintenance instead of the usual return to available.
		closed, err := e.closeOpenCheckout(tx, brokenTag, now, asset.ConditionNeedsRepair, checkinNotes)
		if err != nil {
			if IsCode(err, CodeNoOpenCheckout) {
				return errNotCheckedOut(brokenTag)
			}
			return err
		}
		result.ClosedCheckoutID = closed.ID
		result.Recipient = closed.Recipient

		res := tx.Model(&asset.Asset{}).
			Where("tag = ?", brokenTag).
			Updates(map[string]any{
				"status":     asset.StatusMaintenance,
				"condition":  asset.ConditionNeedsRepair,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("update broken asset: %w", res.Error)
		}

		if err := e.handleNeedsRepair(tx, brokenTag, closed, "loaner_swap", issueNotes, now); err != nil {
			return err
		}

		// Step 2: issue the loaner. A concurrent checkout of the loaner
		// loses the conditional update and rolls the whole swap back.
		res = tx.Model(&asset.Asset{}).
			Where("tag = ? AND status = ?", loanerTag, asset.StatusAvailable).
			Updates(map[string]any{"status": asset.StatusCheckedOut, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("update loaner asset: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errLoanerUnavailable(loanerTag, "concurrently checked out")
		}

		loanerCheckout := &asset.Checkout{
			ID:               uuid.New().String(),
			AssetTag:         loanerTag,
			Recipient:        closed.Recipient,
			IssuedBy:         operator,
			CheckoutAt:       now,
			ExpectedReturnAt: closed.ExpectedReturnAt,
		}
		if err := tx.Create(loanerCheckout).Error; err != nil {
			return fmt.Errorf("create loaner checkout: %w", err)
		}
		result.NewCheckoutID = loanerCheckout.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("loaner swap completed",
		"brokenTag", brokenTag,
		"loanerTag", loanerTag,
		"recipient", result.Recipient,
		"operator", operator)
	return result, nil
}

// Retire marks an asset as retired. Retirement is terminal and
// unconditional; the asset is excluded from checkout eligibility and from
// default listings, but its history stays queryable.
func (e *Engine) Retire(ctx context.Context, tag string) error {
	now := e.now().UTC()
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a asset.Asset
		if err := tx.Where("tag = ?", tag).First(&a).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errNotFound(tag)
			}
			return fmt.Errorf("load asset: %w", err)
		}
		res := tx.Model(&asset.Asset{}).
			Where("tag = ?", tag).
			Updates(map[string]any{"status": asset.StatusRetired, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("retire asset: %w", res.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("asset retired", "tag", tag)
	return nil
}

// CurrentCheckout returns the open checkout for an asset, or nil if the
// asset is in the available pool.
func (e *Engine) CurrentCheckout(tag string) (*asset.Checkout, error) {
	return e.checkouts.OpenFor(tag)
}

// IsAvailable reports whether the asset exists and is eligible for checkout.
func (e *Engine) IsAvailable(tag string) (bool, error) {
	a, err := e.assets.Get(tag)
	if err != nil {
		return false, err
	}
	return a != nil && a.Status == asset.StatusAvailable, nil
}

// IsOverdue reports whether the asset is out past its expected return date.
func (e *Engine) IsOverdue(tag string) (bool, error) {
	open, err := e.checkouts.OpenFor(tag)
	if err != nil {
		return false, err
	}
	return open != nil && open.IsOverdue(e.now()), nil
}
