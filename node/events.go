package node

import "github.com/tailored-agentic-units/clones/observability"

// EventImplementationDeployed is emitted for each implementation a node puts
// on its ledger.
const EventImplementationDeployed observability.EventType = "node.implementation.deployed"
