package node

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/rpc"
)

const (
	defaultObserver = "slog"
	defaultDeployer = "0x0000000000000000000000000000000000c10e00"

	// EnvPrefix prefixes every environment override, e.g. CLONES_RPC_ADDR.
	EnvPrefix = "CLONES_"
)

// Config holds initialization parameters for a node and its subsystems.
type Config struct {
	// Observer names a registered observer, see observability.GetObserver.
	Observer string `json:"observer,omitempty" env:"OBSERVER"`
	// Deployer is the account that deploys the factory and implementations.
	Deployer string `json:"deployer,omitempty" env:"DEPLOYER"`
	// Implementations lists catalog names to deploy at startup.
	Implementations []string      `json:"implementations,omitempty" env:"IMPLEMENTATIONS" envSeparator:","`
	Ledger          ledger.Config `json:"ledger" envPrefix:"LEDGER_"`
	RPC             rpc.Config    `json:"rpc" envPrefix:"RPC_"`
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Observer: defaultObserver,
		Deployer: defaultDeployer,
		Ledger:   ledger.DefaultConfig(),
		RPC:      rpc.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Ledger.Merge(&source.Ledger)
	c.RPC.Merge(&source.RPC)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.Deployer != "" {
		c.Deployer = source.Deployer
	}
	if len(source.Implementations) > 0 {
		c.Implementations = source.Implementations
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

// ApplyEnv merges CLONES_* environment variables into c. Unset variables
// leave c unchanged.
func (c *Config) ApplyEnv() error {
	var overrides Config
	if err := env.ParseWithOptions(&overrides, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.Merge(&overrides)
	return nil
}
