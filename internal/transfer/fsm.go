package transfer

import (
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// validTransitions defines the legal status transitions.
// Each key is a source status, and the value is the set of valid targets.
var validTransitions = map[domain.TransferStatus]map[domain.TransferStatus]bool{
	domain.TransferTraveling: {
		domain.TransferCompleted: true,
		domain.TransferCancelled: true,
		domain.TransferPaused:    true,
	},
	domain.TransferPaused: {
		domain.TransferTraveling: true,
		domain.TransferCancelled: true,
		domain.TransferCompleted: true, // in-flight batches drained while paused
	},
}

// IsValidTransition checks if a status transition is legal.
func IsValidTransition(from, to domain.TransferStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

func transition(inst *domain.TransferInstance, to domain.TransferStatus) error {
	if inst.Status.Terminal() {
		return domain.NewEngineError(domain.ErrTransferTerminal.Code,
			fmt.Sprintf("%s: %s is %s", domain.ErrTransferTerminal.Message, inst.ID, inst.Status))
	}
	if !IsValidTransition(inst.Status, to) {
		return domain.NewEngineError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("illegal transition %s -> %s", inst.Status, to))
	}
	if to == domain.TransferPaused && inst.Order.Mode != domain.ModeContinuous {
		return domain.NewEngineError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("only continuous transfers can pause: %s", inst.ID))
	}
	inst.Status = to
	return nil
}
