package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/account"
	"github.com/tailored-agentic-units/clones/address"
)

func registerImplementations() {
	must(account.Register())
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to register implementation: %v", err))
	}
}

// parseSalt accepts a decimal counter value or a 0x-prefixed 32-byte hex salt.
func parseSalt(s string) (address.Salt, error) {
	if strings.HasPrefix(s, "0x") {
		return address.ParseHash(s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return address.Salt{}, fmt.Errorf("invalid salt %q: %w", s, err)
	}
	return address.SaltFromUint64(n), nil
}

// parseInit turns "initialize()" or "initialize(address)=0x..." into calldata.
// Arguments after '=' are comma separated addresses or decimal integers.
func parseInit(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	sig, rawArgs, _ := strings.Cut(s, "=")
	var args []abi.Word
	if rawArgs != "" {
		for _, raw := range strings.Split(rawArgs, ",") {
			raw = strings.TrimSpace(raw)
			if strings.HasPrefix(raw, "0x") {
				addr, err := address.ParseAddress(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid argument %q: %w", raw, err)
				}
				args = append(args, abi.AddressWord(addr))
				continue
			}
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid argument %q: %w", raw, err)
			}
			args = append(args, abi.Uint64Word(n))
		}
	}
	return abi.EncodeCall(sig, args...), nil
}
