package codec

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrSecretKey  = errors.New("invalid secret key")
	ErrRecoveryID = errors.New("invalid recovery id")
	ErrSignature  = errors.New("invalid recoverable signature")
)

// compactMagic is the offset added to the recovery id in the compact
// signature format of the secp256k1 ecdsa package.
const compactMagic = 27

// ParseSecretKey decodes a 32-byte hex scalar, with or without 0x. Zero and
// values not below the group order are rejected.
func ParseSecretKey(s string) (*secp256k1.PrivateKey, error) {
	var raw [32]byte
	// The input is key material; keep it out of the error text.
	if err := DecodeFixed(raw[:], s); err != nil {
		return nil, ErrSecretKey
	}
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(raw[:]); overflow || k.IsZero() {
		return nil, ErrSecretKey
	}
	return secp256k1.NewPrivateKey(&k), nil
}

// RecoverableSignature is a compact ECDSA signature with the recovery id
// needed to recover the signing public key.
type RecoverableSignature struct {
	compact [64]byte
	recid   byte
}

// ParseRecoverableSignature reads 64 bytes of r||s followed by a recovery
// byte. The recovery byte may be 0 or 1, or 27 or 28 which normalize to 0
// and 1.
func ParseRecoverableSignature(b [65]byte) (RecoverableSignature, error) {
	var sig RecoverableSignature
	switch v := b[64]; v {
	case 0, 1:
		sig.recid = v
	case compactMagic, compactMagic + 1:
		sig.recid = v - compactMagic
	default:
		return sig, fmt.Errorf("%w: %d", ErrRecoveryID, v)
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(b[:32]) || r.IsZero() || s.SetByteSlice(b[32:64]) || s.IsZero() {
		return sig, ErrSignature
	}
	copy(sig.compact[:], b[:64])
	return sig, nil
}

// RecoveryID returns the normalized recovery id, 0 or 1.
func (s RecoverableSignature) RecoveryID() byte { return s.recid }

// Bytes returns r||s||recid with the normalized recovery id.
func (s RecoverableSignature) Bytes() [65]byte {
	var out [65]byte
	copy(out[:], s.compact[:])
	out[64] = s.recid
	return out
}

// Recover returns the public key that produced s over digest.
func (s RecoverableSignature) Recover(digest Bytes32) (*secp256k1.PublicKey, error) {
	var buf [65]byte
	buf[0] = compactMagic + s.recid
	copy(buf[1:], s.compact[:])
	pub, _, err := ecdsa.RecoverCompact(buf[:], digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignature, err)
	}
	return pub, nil
}

// Sign produces a recoverable signature over digest.
func Sign(key *secp256k1.PrivateKey, digest Bytes32) RecoverableSignature {
	b := ecdsa.SignCompact(key, digest[:], false)
	var sig RecoverableSignature
	sig.recid = b[0] - compactMagic
	copy(sig.compact[:], b[1:])
	return sig
}

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) Bytes32 {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Bytes32
	h.Sum(out[:0])
	return out
}

// PubkeyAddress is the last 20 bytes of the Keccak-256 hash of the
// uncompressed public key without its 0x04 tag.
func PubkeyAddress(pub *secp256k1.PublicKey) Address {
	digest := Keccak256(pub.SerializeUncompressed()[1:])
	var a Address
	copy(a[:], digest[12:])
	return a
}
