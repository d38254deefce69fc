package rpc_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/account"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/factory"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/observability"
	"github.com/tailored-agentic-units/clones/rpc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var deployer = address.MustParseAddress("0x00000000000000000000000000000000000000d1")

type fixture struct {
	factory  *factory.Factory
	impl     address.Address
	client   *rpc.Client
	recorder *observability.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	l := ledger.New()

	f, err := factory.Deploy(ctx, l, deployer)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	var impl address.Address
	err = l.Update(ctx, func(tx *ledger.Tx) error {
		var err error
		impl, err = tx.Deploy(deployer, account.New())
		return err
	})
	if err != nil {
		t.Fatalf("deploy implementation failed: %v", err)
	}

	rec := observability.NewRecorder()
	srv := rpc.NewServer(&rpc.Config{}, f, rec)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{
		factory:  f,
		impl:     impl,
		client:   rpc.NewClient(ts.Client(), ts.URL),
		recorder: rec,
	}
}

func TestClient_PredictCreate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	salt := address.SaltFromUint64(1)

	predicted, err := fx.client.Predict(ctx, fx.impl, salt)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if want := fx.factory.Predict(fx.impl, salt); predicted != want {
		t.Errorf("Predict = %s, want %s", predicted, want)
	}

	simulated, err := fx.client.Simulate(ctx, fx.impl, abi.EncodeCall(account.SigInitialize), salt)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if simulated != predicted || len(fx.factory.Records()) != 0 {
		t.Errorf("Simulate = %s with %d records, want %s and none", simulated, len(fx.factory.Records()), predicted)
	}

	created, err := fx.client.Create(ctx, fx.impl, abi.EncodeCall(account.SigInitialize), salt)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created != predicted {
		t.Errorf("Create = %s, want %s", created, predicted)
	}

	info, err := fx.client.Instance(ctx, created)
	if err != nil {
		t.Fatalf("Instance failed: %v", err)
	}
	if info.Implementation != fx.impl || info.Salt != salt {
		t.Errorf("Instance = %+v", info)
	}

	records, err := fx.client.Records(ctx, address.Zero)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 || records[0] != fx.factory.Records()[0] {
		t.Errorf("Records = %+v, want %+v", records, fx.factory.Records())
	}

	filtered, err := fx.client.Records(ctx, deployer)
	if err != nil {
		t.Fatalf("Records(filtered) failed: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("Records(deployer) = %+v, want none", filtered)
	}

	if n := len(fx.recorder.OfType(rpc.EventRequest)); n != 6 {
		t.Errorf("got %d request events, want 6", n)
	}
}

func TestClient_ErrorCodes(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	initialize := abi.EncodeCall(account.SigInitialize)

	if _, err := fx.client.Create(ctx, fx.impl, initialize, address.Salt{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "collision",
			call: func() error {
				_, err := fx.client.Create(ctx, fx.impl, initialize, address.Salt{})
				return err
			},
			want: connect.CodeAlreadyExists,
		},
		{
			name: "initialization",
			call: func() error {
				_, err := fx.client.Create(ctx, fx.impl, nil, address.SaltFromUint64(1))
				return err
			},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "invalid implementation",
			call: func() error {
				_, err := fx.client.Create(ctx, deployer, initialize, address.SaltFromUint64(2))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "not an instance",
			call: func() error {
				_, err := fx.client.Instance(ctx, fx.impl)
				return err
			},
			want: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("code = %v (%v), want %v", got, err, tt.want)
			}
		})
	}
}

func TestHandler_InvalidRequest(t *testing.T) {
	fx := newFixture(t)
	path, handler := rpc.NewHandler(fx.factory)
	if path != "/clones.v1.FactoryService/" {
		t.Errorf("path = %q", path)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+rpc.PredictProcedure)

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{name: "missing implementation", fields: map[string]any{}},
		{name: "bad implementation", fields: map[string]any{rpc.FieldImplementation: "0x1234"}},
		{name: "bad salt", fields: map[string]any{
			rpc.FieldImplementation: fx.impl.String(),
			rpc.FieldSalt:           "zz",
		}},
		{name: "numeric salt", fields: map[string]any{
			rpc.FieldImplementation: fx.impl.String(),
			rpc.FieldSalt:           7.0,
		}},
		{name: "numeric implementation", fields: map[string]any{rpc.FieldImplementation: 42.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := structpb.NewStruct(tt.fields)
			if err != nil {
				t.Fatalf("NewStruct failed: %v", err)
			}
			_, err = client.CallUnary(context.Background(), connect.NewRequest(msg))
			if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
				t.Errorf("code = %v (%v), want invalid_argument", got, err)
			}
		})
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	fx := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	rec := observability.NewRecorder()
	srv := rpc.NewServer(&rpc.Config{}, fx.factory, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()

	client := rpc.NewClient(&http.Client{Transport: transport}, "http://"+ln.Addr().String())
	if _, err := client.Predict(ctx, fx.impl, address.Salt{}); err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if n := len(rec.OfType(rpc.EventServe)); n != 1 {
		t.Errorf("got %d serve events, want 1", n)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := rpc.DefaultConfig()
	if cfg.Addr != "localhost:8545" {
		t.Errorf("default Addr = %q", cfg.Addr)
	}

	cfg.Merge(&rpc.Config{})
	if cfg.Addr != "localhost:8545" {
		t.Errorf("zero source changed Addr to %q", cfg.Addr)
	}

	cfg.Merge(&rpc.Config{Addr: ":9000"})
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
}

func TestListRecords_RejectsNonStringFilter(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	if _, err := fx.client.Create(ctx, fx.impl, abi.EncodeCall(account.SigInitialize), address.Salt{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, handler := rpc.NewHandler(fx.factory)
	ts := httptest.NewServer(handler)
	defer ts.Close()
	client := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+rpc.ListRecordsProcedure)

	tests := []struct {
		name  string
		value any
	}{
		{name: "number", value: 42.0},
		{name: "bool", value: true},
		{name: "list", value: []any{fx.impl.String()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := structpb.NewStruct(map[string]any{rpc.FieldImplementation: tt.value})
			if err != nil {
				t.Fatalf("NewStruct failed: %v", err)
			}
			_, err = client.CallUnary(ctx, connect.NewRequest(msg))
			if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
				t.Errorf("code = %v (%v), want invalid_argument", got, err)
			}
		})
	}
}
