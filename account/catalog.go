package account

import (
	"github.com/tailored-agentic-units/clones/catalog"
	"github.com/tailored-agentic-units/clones/ledger"
)

// CatalogName is the name Register uses.
const CatalogName = "account"

// Register adds Account to the implementation catalog.
func Register() error {
	return catalog.Register(catalog.Info{
		Name:        CatalogName,
		Description: "Owned account with a single-shot initializer and a counter.",
	}, func() ledger.Contract { return New() })
}
