// Package rpc exposes a factory over Connect. Messages are
// google.protobuf.Struct values, so any Connect, gRPC, or gRPC-Web client can
// call the service without generated code.
//
//	path, handler := rpc.NewHandler(f)
//	mux.Handle(path, handler)
//
// Addresses, salts, and payloads travel as 0x-prefixed hex strings.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/factory"
	"github.com/tailored-agentic-units/clones/observability"
)

// ServiceName is the fully qualified service name.
const ServiceName = "clones.v1.FactoryService"

// Procedure paths.
const (
	PredictProcedure     = "/" + ServiceName + "/Predict"
	CreateProcedure      = "/" + ServiceName + "/Create"
	GetInstanceProcedure = "/" + ServiceName + "/GetInstance"
	ListRecordsProcedure = "/" + ServiceName + "/ListRecords"
)

// ErrInvalidRequest means a request message is missing a field or carries
// one that does not parse.
var ErrInvalidRequest = errors.New("invalid request")

// Backend is the factory surface the service serves. *factory.Factory
// satisfies it.
type Backend interface {
	Address() address.Address
	Predict(impl address.Address, salt address.Salt) address.Address
	Create(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error)
	Simulate(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error)
	Instance(addr address.Address) (factory.InstanceInfo, error)
	Records() []factory.CreationRecord
	RecordsFor(impl address.Address) []factory.CreationRecord
}

type service struct {
	backend Backend
}

// NewHandler builds the service handler and returns it with the path prefix
// to mount it under.
func NewHandler(b Backend, opts ...connect.HandlerOption) (string, http.Handler) {
	s := &service{backend: b}

	mux := http.NewServeMux()
	mux.Handle(PredictProcedure, connect.NewUnaryHandler(PredictProcedure, s.predict, opts...))
	mux.Handle(CreateProcedure, connect.NewUnaryHandler(CreateProcedure, s.create, opts...))
	mux.Handle(GetInstanceProcedure, connect.NewUnaryHandler(GetInstanceProcedure, s.getInstance, opts...))
	mux.Handle(ListRecordsProcedure, connect.NewUnaryHandler(ListRecordsProcedure, s.listRecords, opts...))

	return "/" + ServiceName + "/", mux
}

// ObserverInterceptor reports every unary call to o as an EventRequest.
func ObserverInterceptor(o observability.Observer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			res, err := next(ctx, req)

			level := observability.LevelVerbose
			code := "ok"
			if err != nil {
				level = observability.LevelWarning
				code = connect.CodeOf(err).String()
			}
			observability.Emit(ctx, o, observability.Event{
				Type:   EventRequest,
				Level:  level,
				Source: "rpc",
				Data: map[string]any{
					"procedure": req.Spec().Procedure,
					"code":      code,
				},
			})

			return res, err
		}
	}
}

func (s *service) predict(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	impl, err := addressField(req.Msg, FieldImplementation)
	if err != nil {
		return nil, toConnectError(err)
	}
	salt, err := saltField(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	return respond(map[string]any{
		FieldInstance: s.backend.Predict(impl, salt).String(),
	})
}

func (s *service) create(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	impl, err := addressField(req.Msg, FieldImplementation)
	if err != nil {
		return nil, toConnectError(err)
	}
	salt, err := saltField(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	payload, err := payloadField(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	run := s.backend.Create
	if boolField(req.Msg, FieldDryRun) {
		run = s.backend.Simulate
	}

	instance, err := run(ctx, impl, payload, salt)
	if err != nil {
		return nil, toConnectError(err)
	}

	return respond(map[string]any{
		FieldInstance: instance.String(),
		FieldFactory:  s.backend.Address().String(),
	})
}

func (s *service) getInstance(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	addr, err := addressField(req.Msg, FieldAddress)
	if err != nil {
		return nil, toConnectError(err)
	}

	info, err := s.backend.Instance(addr)
	if err != nil {
		return nil, toConnectError(err)
	}

	return respond(map[string]any{
		FieldAddress:        info.Address.String(),
		FieldImplementation: info.Implementation.String(),
		FieldSalt:           info.Salt.String(),
		FieldState:          info.State.String(),
	})
}

func (s *service) listRecords(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var records []factory.CreationRecord
	if _, ok := req.Msg.GetFields()[FieldImplementation]; ok {
		impl, err := addressField(req.Msg, FieldImplementation)
		if err != nil {
			return nil, toConnectError(err)
		}
		records = s.backend.RecordsFor(impl)
	} else {
		records = s.backend.Records()
	}

	list := make([]any, 0, len(records))
	for _, rec := range records {
		list = append(list, recordValue(rec))
	}

	return respond(map[string]any{FieldRecords: list})
}

func respond(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	return connect.NewResponse(msg), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, factory.ErrCollision):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, factory.ErrInvalidImplementation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, factory.ErrNotInstance):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, factory.ErrInitialization):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
