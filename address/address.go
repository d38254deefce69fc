// Package address defines the identity space shared by implementations,
// factories, and clone instances: 20-byte addresses, 32-byte hashes, and the
// pure derivation functions that map a creator and a salt to an address.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// AddressLength is the byte length of an Address.
	AddressLength = 20
	// HashLength is the byte length of a Hash.
	HashLength = 32
)

// Sentinel errors for parsing.
var (
	ErrInvalidHex    = errors.New("invalid hex")
	ErrInvalidLength = errors.New("invalid length")
)

// Address identifies an account in the ledger.
type Address [AddressLength]byte

// Zero is the zero address.
var Zero Address

// BytesToAddress returns an Address from b, keeping the rightmost 20 bytes
// when b is longer and left-padding when it is shorter.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ParseAddress decodes a 0x-prefixed (or bare) 40 character hex string.
func ParseAddress(s string) (Address, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Zero, err
	}
	if len(b) != AddressLength {
		return Zero, fmt.Errorf("%w: address has %d bytes", ErrInvalidLength, len(b))
	}
	return BytesToAddress(b), nil
}

// MustParseAddress is ParseAddress for constants; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Zero }

// String returns the lowercase 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Checksum returns the mixed-case EIP-55 form of the address.
func (a Address) Checksum() string {
	lower := hex.EncodeToString(a[:])
	digest := Keccak256([]byte(lower))

	var b strings.Builder
	b.Grow(2 + len(lower))
	b.WriteString("0x")
	for i, c := range lower {
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte digest or storage word.
type Hash [HashLength]byte

// BytesToHash returns a Hash from b with the same truncation and padding
// rules as BytesToAddress.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// ParseHash decodes a 0x-prefixed (or bare) 64 character hex string.
func ParseHash(s string) (Hash, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashLength {
		return Hash{}, fmt.Errorf("%w: hash has %d bytes", ErrInvalidLength, len(b))
	}
	return BytesToHash(b), nil
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}
