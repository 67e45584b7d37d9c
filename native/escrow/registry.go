package escrow

import (
	"fmt"

	"escrowd/native/common"
)

// Registry operations mutate the approved-arbiter set. Membership is checked
// only when an escrow is created; removing an arbiter later leaves their
// in-flight escrows resolvable by them, a commitment made at creation time.

// AddArbiter admits an address to the approved set. Owner-only.
func (e *Engine) AddArbiter(caller, addr [20]byte) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	if caller != e.owner {
		return fmt.Errorf("%w: only the platform owner may add arbiters", ErrNotAuthorized)
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("%w: zero address", ErrValidation)
	}
	exists, err := e.state.ArbiterExists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: arbiter already approved", ErrAlreadyExists)
	}
	if err := e.state.ArbiterPut(addr); err != nil {
		return err
	}
	e.emit(NewArbiterAddedEvent(addr))
	return nil
}

// RemoveArbiter drops an address from the approved set. Owner-only; the owner
// itself cannot be removed.
func (e *Engine) RemoveArbiter(caller, addr [20]byte) error {
	if err := e.begin(common.ModuleEscrow); err != nil {
		return err
	}
	defer e.end()

	if caller != e.owner {
		return fmt.Errorf("%w: only the platform owner may remove arbiters", ErrNotAuthorized)
	}
	if addr == e.owner {
		return fmt.Errorf("%w: the platform owner cannot be removed", ErrValidation)
	}
	exists, err := e.state.ArbiterExists(addr)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: arbiter not in registry", ErrNotFound)
	}
	if err := e.state.ArbiterRemove(addr); err != nil {
		return err
	}
	e.emit(NewArbiterRemovedEvent(addr))
	return nil
}

// IsArbiter reports whether the address currently belongs to the approved set.
func (e *Engine) IsArbiter(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.ArbiterExists(addr)
}
