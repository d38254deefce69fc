package address

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Salt diversifies CreateAddress2 for otherwise identical creator and code.
type Salt = Hash

// SaltFromUint64 encodes n big-endian into the low bytes of a Salt, so
// SaltFromUint64(0) is the zero salt.
func SaltFromUint64(n uint64) Salt {
	var s Salt
	binary.BigEndian.PutUint64(s[HashLength-8:], n)
	return s
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256.
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// CreateAddress2 derives the address of code created by creator with salt:
// keccak256(0xff ++ creator ++ salt ++ initCodeHash)[12:].
//
// It is pure; prediction and creation must both go through it.
func CreateAddress2(creator Address, salt Salt, initCodeHash Hash) Address {
	h := Keccak256([]byte{0xff}, creator[:], salt[:], initCodeHash[:])
	return BytesToAddress(h[12:])
}

// CreateAddress derives the address of the account created by creator at
// nonce: keccak256(rlp([creator, nonce]))[12:].
func CreateAddress(creator Address, nonce uint64) Address {
	h := Keccak256(rlpCreatorNonce(creator, nonce))
	return BytesToAddress(h[12:])
}

// rlpCreatorNonce encodes the two-item list [creator, nonce]. The payload is
// at most 30 bytes, so the short list form always applies.
func rlpCreatorNonce(creator Address, nonce uint64) []byte {
	payload := make([]byte, 0, 30)
	payload = append(payload, 0x80+AddressLength)
	payload = append(payload, creator[:]...)

	switch {
	case nonce == 0:
		payload = append(payload, 0x80)
	case nonce < 0x80:
		payload = append(payload, byte(nonce))
	default:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], nonce)
		i := 0
		for buf[i] == 0 {
			i++
		}
		payload = append(payload, byte(0x80+8-i))
		payload = append(payload, buf[i:]...)
	}

	return append([]byte{byte(0xc0 + len(payload))}, payload...)
}
