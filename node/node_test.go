package node_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/account"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/catalog"
	"github.com/tailored-agentic-units/clones/factory"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/node"
	"github.com/tailored-agentic-units/clones/observability"
)

func TestMain(m *testing.M) {
	if err := account.Register(); err != nil && !errors.Is(err, catalog.ErrAlreadyExists) {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestDefaultConfig(t *testing.T) {
	cfg := node.DefaultConfig()

	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want slog", cfg.Observer)
	}
	if _, err := address.ParseAddress(cfg.Deployer); err != nil {
		t.Errorf("default Deployer %q does not parse: %v", cfg.Deployer, err)
	}
	if cfg.Ledger.MaxDepth != ledger.DefaultConfig().MaxDepth {
		t.Errorf("got Ledger.MaxDepth %d", cfg.Ledger.MaxDepth)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := node.DefaultConfig()
	want := node.DefaultConfig()

	cfg.Merge(&node.Config{})

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Merge of zero config changed values (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"observer": "noop",
		"implementations": ["account"],
		"ledger": {"max_depth": 64},
		"rpc": {"addr": ":9001"}
	}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := node.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := node.DefaultConfig()
	want.Observer = "noop"
	want.Implementations = []string{"account"}
	want.Ledger.MaxDepth = 64
	want.RPC.Addr = ":9001"

	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("LoadConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := node.LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := node.LoadConfig(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("CLONES_OBSERVER", "noop")
	t.Setenv("CLONES_IMPLEMENTATIONS", "account,vault")
	t.Setenv("CLONES_LEDGER_MAX_DEPTH", "16")
	t.Setenv("CLONES_RPC_ADDR", ":7000")

	cfg := node.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	want := node.DefaultConfig()
	want.Observer = "noop"
	want.Implementations = []string{"account", "vault"}
	want.Ledger.MaxDepth = 16
	want.RPC.Addr = ":7000"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ApplyEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_ApplyEnv_Invalid(t *testing.T) {
	t.Setenv("CLONES_LEDGER_MAX_DEPTH", "deep")

	cfg := node.DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric max depth")
	}
}

func newConfig() *node.Config {
	cfg := node.DefaultConfig()
	cfg.Observer = "noop"
	cfg.Implementations = []string{account.CatalogName}
	return &cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	rec := observability.NewRecorder()

	n, err := node.New(ctx, newConfig(), node.WithObserver(rec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if diff := cmp.Diff([]string{"account"}, n.Implementations()); diff != "" {
		t.Errorf("Implementations mismatch (-want +got):\n%s", diff)
	}

	impl, err := n.Implementation(account.CatalogName)
	if err != nil {
		t.Fatalf("Implementation failed: %v", err)
	}
	if !n.Ledger().HasContract(impl) || !n.Ledger().HasContract(n.Factory().Address()) {
		t.Error("factory or implementation missing from ledger")
	}

	instance, err := n.Factory().Create(ctx, impl, abi.EncodeCall(account.SigInitialize), address.Salt{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if info, err := n.Factory().Instance(instance); err != nil || info.State != factory.StateReady {
		t.Errorf("Instance = %+v, %v", info, err)
	}

	if n := len(rec.OfType(node.EventImplementationDeployed)); n != 1 {
		t.Errorf("got %d deployed events, want 1", n)
	}
	if n := len(rec.OfType(factory.EventDeploy)); n != 1 {
		t.Errorf("got %d factory deploy events, want 1", n)
	}
	if n := len(rec.OfType(ledger.EventCommit)); n < 3 {
		t.Errorf("got %d commit events, want at least 3", n)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*node.Config)
		want   error
	}{
		{
			name:   "unknown observer",
			modify: func(c *node.Config) { c.Observer = "missing" },
			want:   observability.ErrUnknownObserver,
		},
		{
			name:   "bad deployer",
			modify: func(c *node.Config) { c.Deployer = "0xnope" },
			want:   address.ErrInvalidHex,
		},
		{
			name:   "unknown implementation",
			modify: func(c *node.Config) { c.Implementations = []string{"vault"} },
			want:   catalog.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig()
			tt.modify(cfg)
			if _, err := node.New(context.Background(), cfg); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImplementation_Unknown(t *testing.T) {
	n, err := node.New(context.Background(), newConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := n.Implementation("vault"); !errors.Is(err, node.ErrUnknownImplementation) {
		t.Errorf("error = %v, want ErrUnknownImplementation", err)
	}
}

func TestDeploy_SameNameTwice(t *testing.T) {
	ctx := context.Background()
	n, err := node.New(ctx, newConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	first, _ := n.Implementation(account.CatalogName)

	second, err := n.Deploy(ctx, account.CatalogName)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if second == first {
		t.Error("second deployment reused the first address")
	}
	if got, _ := n.Implementation(account.CatalogName); got != second {
		t.Errorf("Implementation = %s, want newest %s", got, second)
	}
}
