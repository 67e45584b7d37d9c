package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// ModuleEscrow names the escrow state machine for pause checks.
const ModuleEscrow = "escrow"

// ModuleFees names the fee withdrawal path for pause checks.
const ModuleFees = "fees"

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause view derived from configuration.
type StaticPauses map[string]bool

// IsPaused implements the PauseView interface.
func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
