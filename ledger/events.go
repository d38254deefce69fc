package ledger

import "github.com/tailored-agentic-units/clones/observability"

// Ledger event types.
const (
	EventCommit   observability.EventType = "ledger.commit"
	EventRollback observability.EventType = "ledger.rollback"
)
