package corpus

import (
	"fmt"
	"strconv"
	"strings"
)

// FaultKind enumerates the closed fault-directive vocabulary. Directives are
// parsed from their string form exactly once, at load time, rather than
// re-parsed on every access during the simulation fold.
type FaultKind int

const (
	// FaultDropNextEARE models a record that is never observed or delivered.
	// A fork caused by a dropped record is not detectable.
	FaultDropNextEARE FaultKind = iota + 1

	// FaultDelayValidation models the lag between a record appearing on the
	// wire and a validator noticing its consequences.
	FaultDelayValidation
)

// Fault is one parsed fault directive attached to an event.
type Fault struct {
	Kind    FaultKind
	DelayMs int64 // set for FaultDelayValidation only
}

const (
	faultDropDirective  = "drop_next_eare"
	faultDelayDirective = "delay_validation"
)

// ParseFault parses a single raw directive. The vocabulary is closed:
// anything but drop_next_eare or delay_validation:<ms> is a corpus error.
func ParseFault(raw string) (Fault, error) {
	if raw == faultDropDirective {
		return Fault{Kind: FaultDropNextEARE}, nil
	}
	if name, arg, ok := strings.Cut(raw, ":"); ok && name == faultDelayDirective {
		ms, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || ms < 0 {
			return Fault{}, fmt.Errorf("fault directive %q: bad delay %q", raw, arg)
		}
		return Fault{Kind: FaultDelayValidation, DelayMs: ms}, nil
	}
	return Fault{}, fmt.Errorf("unrecognized fault directive %q", raw)
}

// ParseFaults parses an event's raw directive list in declaration order.
func ParseFaults(raw []string) ([]Fault, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	faults := make([]Fault, 0, len(raw))
	for _, r := range raw {
		f, err := ParseFault(r)
		if err != nil {
			return nil, err
		}
		faults = append(faults, f)
	}
	return faults, nil
}

// Drop reports whether the fault list contains drop_next_eare.
func Drop(faults []Fault) bool {
	for _, f := range faults {
		if f.Kind == FaultDropNextEARE {
			return true
		}
	}
	return false
}

// Delay returns the delay_validation lag in milliseconds, or 0 if the list
// carries no such directive. The first directive wins.
func Delay(faults []Fault) int64 {
	for _, f := range faults {
		if f.Kind == FaultDelayValidation {
			return f.DelayMs
		}
	}
	return 0
}
