package domain

import (
	"fmt"
	"time"
)

// ModeProfile is one risk profile. The scanner reads the active profile once
// per tick so a whole tick runs under a single consistent configuration.
type ModeProfile struct {
	Name        string        `json:"name"`
	Threshold   float64       `json:"threshold"` // |composite score| gate, inclusive
	Cooldown    time.Duration `json:"cooldown"`
	StopPct     float64       `json:"stop_pct"`   // distance from entry, e.g. 0.012
	TargetPct   float64       `json:"target_pct"` // distance from entry
	TimeoutBars int           `json:"timeout_bars"`
}

// KnownModes lists the accepted mode names.
var KnownModes = []string{"aggressive", "balanced", "conservative"}

// ValidateModeName returns an error when name is not a known mode.
func ValidateModeName(name string) error {
	for _, m := range KnownModes {
		if m == name {
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q (want one of %v)", name, KnownModes)
}
