package lifecycle

import (
	"fmt"

	"github.com/schoolops/assettrack/pkg/asset"
)

// Op names the lifecycle operation driving a transition.
type Op string

const (
	OpCheckout   Op = "checkout"
	OpCheckin    Op = "checkin"
	OpLoanerSwap Op = "loaner_swap"
	OpRepair     Op = "repair"
	OpRetire     Op = "retire"
)

// TransitionRule defines an allowed status transition for an operation.
type TransitionRule struct {
	Op   Op
	From asset.Status
	To   asset.Status
}

// DefaultTransitions defines the allowed asset status transitions.
// Retire is handled separately: it is allowed from any status.
var DefaultTransitions = []TransitionRule{
	{Op: OpCheckout, From: asset.StatusAvailable, To: asset.StatusCheckedOut},
	{Op: OpCheckout, From: asset.StatusAvailable, To: asset.StatusDeployed},
	{Op: OpCheckin, From: asset.StatusCheckedOut, To: asset.StatusAvailable},
	{Op: OpCheckin, From: asset.StatusDeployed, To: asset.StatusAvailable},
	{Op: OpLoanerSwap, From: asset.StatusCheckedOut, To: asset.StatusMaintenance},
	{Op: OpLoanerSwap, From: asset.StatusDeployed, To: asset.StatusMaintenance},
	{Op: OpLoanerSwap, From: asset.StatusAvailable, To: asset.StatusCheckedOut},
	{Op: OpRepair, From: asset.StatusMaintenance, To: asset.StatusAvailable},
}

// Machine validates asset status transitions.
type Machine struct {
	transitions []TransitionRule
}

// NewMachine creates a machine with the default rules.
func NewMachine() *Machine {
	return &Machine{transitions: DefaultTransitions}
}

// ValidateTransition checks whether op may move an asset from -> to.
// Returns nil if allowed, an error with a machine-readable code if not.
func (m *Machine) ValidateTransition(op Op, from, to asset.Status) error {
	// Retirement is terminal and unconditional, from any status.
	if op == OpRetire && to == asset.StatusRetired {
		return nil
	}
	for _, t := range m.transitions {
		if t.Op == op && t.From == from && t.To == to {
			return nil
		}
	}
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot move an asset from %s to %s", op, from, to),
	}
}

// AllowedTargets returns all valid target statuses for op from the given status.
func (m *Machine) AllowedTargets(op Op, from asset.Status) []asset.Status {
	var targets []asset.Status
	for _, t := range m.transitions {
		if t.Op == op && t.From == from {
			targets = append(targets, t.To)
		}
	}
	return targets
}
