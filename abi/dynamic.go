package abi

import (
	"fmt"
)

// Arg is one call argument: a static word or a dynamic byte string.
type Arg struct {
	word    Word
	data    []byte
	dynamic bool
}

// Static wraps a word argument.
func Static(w Word) Arg { return Arg{word: w} }

// Bytes wraps a dynamic bytes argument.
func Bytes(b []byte) Arg { return Arg{data: b, dynamic: true} }

// Pack builds calldata using the head/tail layout: static arguments sit in
// the head, dynamic ones are replaced there by an offset into the tail where
// their length and right-padded contents follow.
func Pack(signature string, args ...Arg) []byte {
	sel := NewSelector(signature)

	head := make([]byte, 0, len(args)*WordSize)
	var tail []byte
	for _, a := range args {
		if !a.dynamic {
			head = append(head, a.word[:]...)
			continue
		}
		offset := Uint64Word(uint64(len(args)*WordSize + len(tail)))
		head = append(head, offset[:]...)

		length := Uint64Word(uint64(len(a.data)))
		tail = append(tail, length[:]...)
		tail = append(tail, a.data...)
		if pad := len(a.data) % WordSize; pad != 0 {
			tail = append(tail, make([]byte, WordSize-pad)...)
		}
	}

	out := make([]byte, 0, len(sel)+len(head)+len(tail))
	out = append(out, sel[:]...)
	out = append(out, head...)
	return append(out, tail...)
}

// DecodeBytes reads the dynamic bytes argument whose offset is stored in
// args[at].
func DecodeBytes(args []Word, at int) ([]byte, error) {
	if at < 0 || at >= len(args) {
		return nil, fmt.Errorf("%w: no argument %d", ErrBadArgs, at)
	}

	offset := WordUint64(args[at])
	if offset%WordSize != 0 {
		return nil, fmt.Errorf("%w: unaligned offset %d", ErrBadArgs, offset)
	}
	idx := offset / WordSize
	if idx >= uint64(len(args)) {
		return nil, fmt.Errorf("%w: offset %d out of range", ErrBadArgs, offset)
	}

	length := WordUint64(args[idx])
	if length > uint64(len(args))*WordSize {
		return nil, fmt.Errorf("%w: length %d out of range", ErrBadArgs, length)
	}
	words := (length + WordSize - 1) / WordSize
	if words > uint64(len(args))-idx-1 {
		return nil, fmt.Errorf("%w: length %d out of range", ErrBadArgs, length)
	}

	data := make([]byte, 0, words*WordSize)
	for _, w := range args[idx+1 : idx+1+words] {
		data = append(data, w[:]...)
	}
	return data[:length], nil
}
