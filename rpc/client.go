package rpc

import (
	"context"
	"encoding/hex"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/factory"
)

// Client calls a remote factory service. Errors are *connect.Error values;
// use connect.CodeOf to tell a collision (AlreadyExists) from a failed
// initialization (FailedPrecondition).
type Client struct {
	predict     *connect.Client[structpb.Struct, structpb.Struct]
	create      *connect.Client[structpb.Struct, structpb.Struct]
	getInstance *connect.Client[structpb.Struct, structpb.Struct]
	listRecords *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient builds a Client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		predict:     connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+PredictProcedure, opts...),
		create:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+CreateProcedure, opts...),
		getInstance: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetInstanceProcedure, opts...),
		listRecords: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListRecordsProcedure, opts...),
	}
}

// Predict returns the identity a Create with impl and salt would produce.
func (c *Client) Predict(ctx context.Context, impl address.Address, salt address.Salt) (address.Address, error) {
	res, err := call(ctx, c.predict, map[string]any{
		FieldImplementation: impl.String(),
		FieldSalt:           salt.String(),
	})
	if err != nil {
		return address.Zero, err
	}
	return addressField(res, FieldInstance)
}

// Create clones impl remotely and forwards payload as its initializer.
func (c *Client) Create(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error) {
	return c.doCreate(ctx, impl, payload, salt, false)
}

// Simulate is Create without committing.
func (c *Client) Simulate(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error) {
	return c.doCreate(ctx, impl, payload, salt, true)
}

func (c *Client) doCreate(ctx context.Context, impl address.Address, payload []byte, salt address.Salt, dryRun bool) (address.Address, error) {
	res, err := call(ctx, c.create, map[string]any{
		FieldImplementation: impl.String(),
		FieldSalt:           salt.String(),
		FieldPayload:        "0x" + hex.EncodeToString(payload),
		FieldDryRun:         dryRun,
	})
	if err != nil {
		return address.Zero, err
	}
	return addressField(res, FieldInstance)
}

// Instance describes the clone at addr.
func (c *Client) Instance(ctx context.Context, addr address.Address) (factory.InstanceInfo, error) {
	res, err := call(ctx, c.getInstance, map[string]any{FieldAddress: addr.String()})
	if err != nil {
		return factory.InstanceInfo{}, err
	}

	info := factory.InstanceInfo{State: factory.StateReady}
	if info.Address, err = addressField(res, FieldAddress); err != nil {
		return info, err
	}
	if info.Implementation, err = addressField(res, FieldImplementation); err != nil {
		return info, err
	}
	if info.Salt, err = saltField(res); err != nil {
		return info, err
	}
	return info, nil
}

// Records lists creation records, restricted to clones of impl when impl is
// not the zero address.
func (c *Client) Records(ctx context.Context, impl address.Address) ([]factory.CreationRecord, error) {
	fields := map[string]any{}
	if !impl.IsZero() {
		fields[FieldImplementation] = impl.String()
	}

	res, err := call(ctx, c.listRecords, fields)
	if err != nil {
		return nil, err
	}

	values := res.GetFields()[FieldRecords].GetListValue().GetValues()
	records := make([]factory.CreationRecord, 0, len(values))
	for i, v := range values {
		rec, err := RecordFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func call(ctx context.Context, client *connect.Client[structpb.Struct, structpb.Struct], fields map[string]any) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	res, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
