package connectivity

import "github.com/tranvh/chatline/internal/bus"

// State is the monitor's view of server reachability. Suspect sits between
// the first failure and the offline decision so one dropped request does
// not flip the UI straight to "disconnected".
type State string

const (
	StateOnline  State = "online"
	StateSuspect State = "suspect"
	StateOffline State = "offline"
)

var validTransitions = map[State][]State{
	StateOnline:  {StateSuspect, StateOffline},
	StateSuspect: {StateOnline, StateOffline},
	StateOffline: {StateOnline},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// KindChanged is published on every state transition.
const KindChanged = bus.NamespaceConnectivity + "changed"

// Change is the payload of KindChanged events.
type Change struct {
	From      State
	To        State
	Reachable bool
}
