// Package proxy builds and recognises the minimal delegating stub that every
// clone instance is made of. The stub is byte-exact EIP-1167 code: it carries
// no logic of its own beyond the address of the implementation it forwards
// every call to.
package proxy

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/clones/address"
)

var (
	// constructor copies the 45-byte runtime into memory and returns it.
	constructor = []byte{0x3d, 0x60, 0x2d, 0x80, 0x60, 0x0a, 0x3d, 0x39, 0x81, 0xf3}

	runtimePrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73}
	runtimeSuffix = []byte{
		0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d,
		0x91, 0x60, 0x2b, 0x57, 0xfd, 0x5b, 0xf3,
	}
)

// RuntimeLength is the size of the deployed stub.
const RuntimeLength = 45

// ErrNotTemplate is returned when creation code is not the clone template.
var ErrNotTemplate = errors.New("code is not a minimal proxy template")

// Runtime returns the deployed stub code delegating to impl.
func Runtime(impl address.Address) []byte {
	code := make([]byte, 0, RuntimeLength)
	code = append(code, runtimePrefix...)
	code = append(code, impl[:]...)
	return append(code, runtimeSuffix...)
}

// InitCode returns the creation code that deploys Runtime(impl).
func InitCode(impl address.Address) []byte {
	code := make([]byte, 0, len(constructor)+RuntimeLength)
	code = append(code, constructor...)
	return append(code, Runtime(impl)...)
}

// TemplateHash is the hash of InitCode(impl), the code hash input to
// address.CreateAddress2.
func TemplateHash(impl address.Address) address.Hash {
	return address.Keccak256(InitCode(impl))
}

// Implementation reports the address a deployed stub delegates to.
func Implementation(code []byte) (address.Address, bool) {
	if len(code) != RuntimeLength ||
		!bytes.HasPrefix(code, runtimePrefix) ||
		!bytes.HasSuffix(code, runtimeSuffix) {
		return address.Zero, false
	}
	return address.BytesToAddress(code[len(runtimePrefix) : len(runtimePrefix)+address.AddressLength]), true
}

// RuntimeFromInitCode validates that initCode is exactly the clone template
// and returns the runtime it deploys.
func RuntimeFromInitCode(initCode []byte) ([]byte, error) {
	if !bytes.HasPrefix(initCode, constructor) {
		return nil, fmt.Errorf("%w: unexpected constructor", ErrNotTemplate)
	}
	runtime := initCode[len(constructor):]
	if _, ok := Implementation(runtime); !ok {
		return nil, fmt.Errorf("%w: unexpected runtime", ErrNotTemplate)
	}
	return bytes.Clone(runtime), nil
}
