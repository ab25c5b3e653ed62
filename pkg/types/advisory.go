package types

import (
	"encoding/json"
	"fmt"
)

// Advisory is the discrete usage recommendation shown to the household:
// green (consume freely), yellow (normal), red (conserve). Recomputed on
// every refresh tick, never persisted.
type Advisory int

const (
	AdvisoryGreen Advisory = iota
	AdvisoryYellow
	AdvisoryRed
)

func (a Advisory) String() string {
	switch a {
	case AdvisoryGreen:
		return "green"
	case AdvisoryYellow:
		return "yellow"
	case AdvisoryRed:
		return "red"
	}
	return fmt.Sprintf("Advisory(%d)", int(a))
}

// MarshalJSON encodes the advisory as its color name.
func (a Advisory) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a color name back into an advisory.
func (a *Advisory) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "green":
		*a = AdvisoryGreen
	case "yellow":
		*a = AdvisoryYellow
	case "red":
		*a = AdvisoryRed
	default:
		return fmt.Errorf("unknown advisory: %q", s)
	}
	return nil
}
