package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Well-known kind namespaces. Subscribers filter by prefix, so "socket."
// receives every realtime push while "socket.message:new" receives exactly
// one named event. The transport publishes raw pushes; everything else is
// derived by the components that own the state.
const (
	// NamespaceSocket carries raw realtime pushes as "socket.<event>",
	// e.g. "socket.message:new" or "socket.user:online".
	NamespaceSocket = "socket."

	// NamespaceTimeline carries per-conversation timeline mutations.
	NamespaceTimeline = "timeline."

	// NamespaceConversations carries conversation-list refreshes.
	NamespaceConversations = "conversations."

	// NamespacePresence carries online-set changes.
	NamespacePresence = "presence."

	// NamespaceConnectivity carries server-reachable flag flips.
	NamespaceConnectivity = "connectivity."

	// NamespaceSession carries auth lifecycle events (status change, logout).
	NamespaceSession = "session."
)

// SocketKind builds the bus kind for a named realtime event.
func SocketKind(event string) string {
	return NamespaceSocket + event
}
