// Package checkin implements the live face check-in capture loop: a
// scheduler that paces capture attempts, a pure reducer that interprets
// verification outcomes, and a controller that wires both to a camera and a
// remote verifier.
package checkin

import "fmt"

// State is the capture session state.
type State string

// State values. Processing is a UI-visible sub-state of scanning. Stopped is
// entered only through Controller.Stop, never by the reducer.
const (
	StateInitializing     State = "initializing"
	StateScanning         State = "scanning"
	StateProcessing       State = "processing"
	StateMatchedFinal     State = "matched-final"
	StateRecoverableError State = "recoverable-error"
	StateFatalError       State = "fatal-error"
	StateStopped          State = "stopped"
)

// Terminal reports whether no further capture attempts may follow.
func (s State) Terminal() bool {
	return s == StateMatchedFinal || s == StateFatalError || s == StateStopped
}

// Mode selects the session variant.
type Mode string

// Mode values.
const (
	// ModeSingle is the attendee self-check-in: terminal on the first match.
	ModeSingle Mode = "single-subject"
	// ModeBatch is the host scanning a room: matches accumulate until the
	// host ends the session.
	ModeBatch Mode = "batch"
)

// ParseMode accepts the canonical names plus the short aliases used by the
// CLI and the kiosk API.
func ParseMode(s string) (Mode, error) {
	switch s {
	case string(ModeSingle), "single", "self":
		return ModeSingle, nil
	case string(ModeBatch), "room", "host":
		return ModeBatch, nil
	}
	return "", fmt.Errorf("unknown check-in mode %q", s)
}
