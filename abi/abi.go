// Package abi encodes calls the way contracts expect them: a four-byte
// selector derived from the function signature followed by 32-byte words.
// Payloads stay opaque to the factory; callers use this package to build
// them and contracts use it to take them apart.
package abi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/clones/address"
)

// WordSize is the width of one encoded argument.
const WordSize = 32

var (
	ErrShortInput = errors.New("input shorter than selector")
	ErrBadArgs    = errors.New("arguments are not whole words")
)

// Selector identifies a function by the first four bytes of the Keccak
// hash of its canonical signature, e.g. "initialize(address)".
type Selector [4]byte

// NewSelector computes the selector for signature.
func NewSelector(signature string) Selector {
	var s Selector
	h := address.Keccak256([]byte(signature))
	copy(s[:], h[:4])
	return s
}

func (s Selector) String() string {
	return fmt.Sprintf("0x%x", s[:])
}

// Word is one 32-byte argument or return value.
type Word = address.Hash

// AddressWord left-pads a into a word.
func AddressWord(a address.Address) Word {
	return address.BytesToHash(a[:])
}

// Uint64Word encodes n big-endian into a word.
func Uint64Word(n uint64) Word {
	return address.SaltFromUint64(n)
}

// BoolWord encodes b as 0 or 1.
func BoolWord(b bool) Word {
	if b {
		return Uint64Word(1)
	}
	return Word{}
}

// WordAddress decodes the low 20 bytes of w.
func WordAddress(w Word) address.Address {
	return address.BytesToAddress(w[:])
}

// WordUint64 decodes the low 8 bytes of w.
func WordUint64(w Word) uint64 {
	return binary.BigEndian.Uint64(w[WordSize-8:])
}

// EncodeCall builds calldata for signature with the given arguments.
func EncodeCall(signature string, args ...Word) []byte {
	sel := NewSelector(signature)
	out := make([]byte, 0, len(sel)+len(args)*WordSize)
	out = append(out, sel[:]...)
	for _, w := range args {
		out = append(out, w[:]...)
	}
	return out
}

// EncodeWords concatenates words, the shape of a return value.
func EncodeWords(words ...Word) []byte {
	out := make([]byte, 0, len(words)*WordSize)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// DecodeWords splits data into whole words.
func DecodeWords(data []byte) ([]Word, error) {
	if len(data)%WordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadArgs, len(data))
	}
	words := make([]Word, len(data)/WordSize)
	for i := range words {
		words[i] = address.BytesToHash(data[i*WordSize : (i+1)*WordSize])
	}
	return words, nil
}

// SplitCall separates calldata into its selector and argument words.
func SplitCall(input []byte) (Selector, []Word, error) {
	var sel Selector
	if len(input) < len(sel) {
		return sel, nil, fmt.Errorf("%w: %d bytes", ErrShortInput, len(input))
	}
	copy(sel[:], input)

	args, err := DecodeWords(input[len(sel):])
	if err != nil {
		return sel, nil, err
	}
	return sel, args, nil
}
