package session

import "encoding/json"

// Phase is the lifecycle position of a session. Connecting is implicit
// (before the upgrade completes), so a Session starts in Connected.
type Phase int

const (
	Connected Phase = iota
	Closed
)

var phaseNames = map[Phase]string{
	Connected: "connected",
	Closed:    "closed",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p Phase) IsTerminal() bool {
	return p == Closed
}
