package rpc

const defaultAddr = "localhost:8545"

// Config holds RPC server parameters.
type Config struct {
	Addr string `json:"addr,omitempty" env:"ADDR"`
}

// DefaultConfig returns the default RPC configuration.
func DefaultConfig() Config {
	return Config{Addr: defaultAddr}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
}
