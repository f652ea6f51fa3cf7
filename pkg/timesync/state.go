package timesync

// SyncState is the tagged state of the sync orchestrator. Exactly one
// state is active at a time and it is owned exclusively by the
// orchestrator; every cycle ends back in StateIdle.
type SyncState int

const (
	// StateIdle means no cycle is in flight.
	StateIdle SyncState = iota
	// StateStarting begins the network link bring-up.
	StateStarting
	// StateAwaitingLink polls for link-up until a deadline.
	StateAwaitingLink
	// StateFastQuery sends a query to the next fixed address.
	StateFastQuery
	// StateResolvingName resolves the canonical time-service name.
	StateResolvingName
	// StateSendingQuery sends a query to the resolved address.
	StateSendingQuery
	// StateAwaitingQueryReply polls the socket for a reply frame.
	StateAwaitingQueryReply
	// StateTextFallback attempts the text-protocol fetch.
	StateTextFallback
)

var stateNames = map[SyncState]string{
	StateIdle:               "idle",
	StateStarting:           "starting",
	StateAwaitingLink:       "awaiting-link",
	StateFastQuery:          "fast-query",
	StateResolvingName:      "resolving-name",
	StateSendingQuery:       "sending-query",
	StateAwaitingQueryReply: "awaiting-reply",
	StateTextFallback:       "text-fallback",
}

// String implements Stringer.
func (s SyncState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
