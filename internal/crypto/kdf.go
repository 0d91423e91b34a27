package crypto

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var ErrInvalidPeerKey = errors.New("invalid peer key")

// kdf32 derives a fixed 32-byte key from input keyed by an info label, the
// single derivation shape every key in the group schedule flows through.
func kdf32(input, info []byte) []byte {
	reader := hkdf.New(sha256.New, input, nil, info)
	out := make([]byte, 32)
	_, _ = io.ReadFull(reader, out)
	return out
}

// appendUint64Suffix appends idx big-endian to a copy of base, used to bind
// epoch numbers into AEAD associated data.
func appendUint64Suffix(base []byte, idx uint64) []byte {
	out := append([]byte{}, base...)
	out = append(out, byte(idx>>56), byte(idx>>48), byte(idx>>40), byte(idx>>32), byte(idx>>24), byte(idx>>16), byte(idx>>8), byte(idx))
	return out
}
