package pio

import "fmt"

// State is the lifecycle position of an engine. While a run is in progress
// it is the phase the next Step will execute, derived from the iteration
// counter alone.
type State int

const (
	Unconfigured State = iota
	Configured
	MapAndCompass
	Landmark
	Finished
	// Aborted follows a numeric fault. Only Configure, Start or Reset leave it.
	Aborted
)

var stateNames = map[State]string{
	Unconfigured:  "unconfigured",
	Configured:    "configured",
	MapAndCompass: "map-and-compass",
	Landmark:      "landmark",
	Finished:      "finished",
	Aborted:       "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Running reports whether Step will advance the run.
func (s State) Running() bool {
	return s == MapAndCompass || s == Landmark
}

// PhaseAt is the phase of iteration i of a run of max iterations.
func PhaseAt(i, max int) State {
	switch {
	case i >= max:
		return Finished
	case float64(i) < float64(max)/2:
		return MapAndCompass
	default:
		return Landmark
	}
}
