package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/factory"
)

// Request and response field names.
const (
	FieldAddress        = "address"
	FieldImplementation = "implementation"
	FieldSalt           = "salt"
	FieldPayload        = "payload"
	FieldInstance       = "instance"
	FieldFactory        = "factory"
	FieldState          = "state"
	FieldIndex          = "index"
	FieldRecords        = "records"
	FieldDryRun         = "dry_run"
)

// stringField reports whether name is present. A present field that is not
// a string is an ErrInvalidRequest.
func stringField(msg *structpb.Struct, name string) (string, bool, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return "", false, nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", true, fmt.Errorf("%w: %s must be a string", ErrInvalidRequest, name)
	}
	return s.StringValue, true, nil
}

func addressField(msg *structpb.Struct, name string) (address.Address, error) {
	s, ok, err := stringField(msg, name)
	if err != nil {
		return address.Zero, err
	}
	if !ok {
		return address.Zero, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	addr, err := address.ParseAddress(s)
	if err != nil {
		return address.Zero, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, name, err)
	}
	return addr, nil
}

// saltField defaults to the zero salt when absent.
func saltField(msg *structpb.Struct) (address.Salt, error) {
	s, ok, err := stringField(msg, FieldSalt)
	if err != nil || !ok {
		return address.Salt{}, err
	}
	salt, err := address.ParseHash(s)
	if err != nil {
		return address.Salt{}, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, FieldSalt, err)
	}
	return salt, nil
}

func payloadField(msg *structpb.Struct) ([]byte, error) {
	s, ok, err := stringField(msg, FieldPayload)
	if err != nil || !ok {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, FieldPayload, err)
	}
	return b, nil
}

func boolField(msg *structpb.Struct, name string) bool {
	return msg.GetFields()[name].GetBoolValue()
}

func recordValue(rec factory.CreationRecord) map[string]any {
	return map[string]any{
		FieldFactory:        rec.Factory.String(),
		FieldInstance:       rec.Instance.String(),
		FieldImplementation: rec.Implementation.String(),
		FieldSalt:           rec.Salt.String(),
		FieldIndex:          float64(rec.Index),
	}
}

// RecordFromStruct decodes a record produced by ListRecords.
func RecordFromStruct(msg *structpb.Struct) (factory.CreationRecord, error) {
	var rec factory.CreationRecord
	var err error
	if rec.Factory, err = addressField(msg, FieldFactory); err != nil {
		return rec, err
	}
	if rec.Instance, err = addressField(msg, FieldInstance); err != nil {
		return rec, err
	}
	if rec.Implementation, err = addressField(msg, FieldImplementation); err != nil {
		return rec, err
	}
	if rec.Salt, err = saltField(msg); err != nil {
		return rec, err
	}
	rec.Index = uint64(msg.GetFields()[FieldIndex].GetNumberValue())
	return rec, nil
}
