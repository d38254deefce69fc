package rpc

import "github.com/tailored-agentic-units/clones/observability"

// RPC event types.
const (
	EventServe   observability.EventType = "rpc.serve"
	EventRequest observability.EventType = "rpc.request"
)
