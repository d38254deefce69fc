package ledger

// Config holds ledger initialization parameters.
type Config struct {
	// MaxDepth bounds nested calls and delegation hops.
	MaxDepth int `json:"max_depth,omitempty" env:"MAX_DEPTH"`
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{MaxDepth: defaultMaxDepth}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MaxDepth > 0 {
		c.MaxDepth = source.MaxDepth
	}
}

// NewFromConfig creates a Ledger from configuration. Options are applied
// after the configured values.
func NewFromConfig(cfg *Config, opts ...Option) *Ledger {
	return New(append([]Option{WithMaxDepth(cfg.MaxDepth)}, opts...)...)
}
