package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/factory"
	"github.com/tailored-agentic-units/clones/node"
	"github.com/tailored-agentic-units/clones/observability"
)

func main() {
	var (
		configFile     = flag.String("config", "", "Path to node config JSON file")
		implementation = flag.String("implementation", "account", "Catalog name of the implementation to clone")
		saltFlag       = flag.String("salt", "0", "Salt: decimal counter value or 0x-prefixed 32-byte hex")
		initFlag       = flag.String("init", "initialize()", "Initializer call, e.g. initialize(address)=0x...; empty forwards no data")
		serve          = flag.Bool("serve", false, "Serve the factory over RPC instead of running the demo")
		addr           = flag.String("addr", "", "RPC listen address (overrides config)")
		verbose        = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := node.DefaultConfig()
	if *configFile != "" {
		loaded, err := node.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}
	if *addr != "" {
		cfg.RPC.Addr = *addr
	}
	if !slices.Contains(cfg.Implementations, *implementation) {
		cfg.Implementations = append(cfg.Implementations, *implementation)
	}

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	registerImplementations()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, err := node.New(ctx, &cfg)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}

	if *serve {
		if err := n.Server().ListenAndServe(ctx); err != nil {
			log.Fatalf("RPC server failed: %v", err)
		}
		return
	}

	salt, err := parseSalt(*saltFlag)
	if err != nil {
		log.Fatal(err)
	}
	payload, err := parseInit(*initFlag)
	if err != nil {
		log.Fatal(err)
	}

	if err := demo(ctx, n, *implementation, payload, salt); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

// demo predicts an identity, creates a clone there, and shows that a second
// creation with the same salt collides.
func demo(ctx context.Context, n *node.Node, name string, payload []byte, salt address.Salt) error {
	impl, err := n.Implementation(name)
	if err != nil {
		return err
	}
	f := n.Factory()

	fmt.Printf("Factory:        %s\n", f.Address().Checksum())
	fmt.Printf("Implementation: %s (%s)\n", impl.Checksum(), name)

	predicted := f.Predict(impl, salt)
	fmt.Printf("Predicted:      %s\n", predicted.Checksum())

	if _, err := f.Simulate(ctx, impl, payload, salt); err != nil {
		fmt.Printf("Simulation:     %v\n", err)
	}

	instance, err := f.Create(ctx, impl, payload, salt)
	if err != nil {
		return err
	}
	fmt.Printf("Created:        %s (matches prediction: %t)\n", instance.Checksum(), instance == predicted)

	for _, rec := range f.RecordsFor(impl) {
		if rec.Instance == instance {
			fmt.Printf("\nProxyCreated:\n  instance=%s\n  implementation=%s\n  salt=%s\n",
				rec.Instance.Checksum(), rec.Implementation.Checksum(), rec.Salt)
		}
	}

	_, err = f.Create(ctx, impl, payload, salt)
	switch {
	case errors.Is(err, factory.ErrCollision):
		fmt.Printf("\nSecond create with the same salt: %v\n", err)
	case err != nil:
		return err
	default:
		return errors.New("second create with the same salt succeeded")
	}

	return nil
}
