package scope

import "encoding/json"

// Trace records how a resolution was decided: every scope id found for the
// caller, innermost first, and which one won.
type Trace struct {
	Instance   uint64      `json:"instance"`
	Candidates []Candidate `json:"candidates"`
	Outcome    Outcome     `json:"outcome"`
}

// Candidate describes one scope id considered during resolution.
type Candidate struct {
	ID          int  `json:"id"`
	Live        bool `json:"live"`
	Initialized bool `json:"initialized"`
	Selected    bool `json:"selected,omitempty"`
}

// Selected returns the candidate that decided the resolution.
func (t Trace) Selected() (Candidate, bool) {
	for _, candidate := range t.Candidates {
		if candidate.Selected {
			return candidate, true
		}
	}
	return Candidate{}, false
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
