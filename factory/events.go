package factory

import "github.com/tailored-agentic-units/clones/observability"

// Factory event types.
const (
	EventCreateStart    observability.EventType = "factory.create.start"
	EventCreateComplete observability.EventType = "factory.create.complete"
	EventCreateFailed   observability.EventType = "factory.create.failed"
	EventDeploy         observability.EventType = "factory.deploy"
)
