package marshal

import (
	"errors"
	"math"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/cryguy/hostbridge/codec"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/safeerr"
)

// BytesFrom accepts binary data (ArrayBuffer or a view) as is, or hex text
// with an optional 0x prefix.
func BytesFrom(h host.Host, v host.Value) ([]byte, error) {
	switch v.Kind() {
	case host.KindBinary:
		return h.BinaryOf(v)
	case host.KindString:
		s, err := h.StringOf(v)
		if err != nil {
			return nil, err
		}
		b, err := codec.DecodeHex(s)
		if err != nil {
			return nil, safeerr.Invalidf("%w", err)
		}
		return b, nil
	default:
		return nil, safeerr.MismatchError("string or binary", v.Kind())
	}
}

// BytesInto encodes b as 0x-prefixed hex text.
func BytesInto(h host.Host, b []byte) (host.Value, error) {
	return h.String(codec.EncodeHex(b))
}

// BinaryInto copies b into a new ArrayBuffer.
func BinaryInto(h host.Host, b []byte) (host.Value, error) {
	if uint64(len(b)) > math.MaxUint32 {
		return nil, safeerr.Unrepresentablef("array of %d bytes too large for JavaScript", len(b))
	}
	return h.Binary(b)
}

// Fixed reads hex text holding exactly n bytes.
func Fixed(n int) From[[]byte] {
	return func(h host.Host, v host.Value) ([]byte, error) {
		s, err := StringFrom(h, v)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		if err := codec.DecodeFixed(out, s); err != nil {
			return nil, safeerr.Invalidf("failed to parse [%d]byte: %w", n, err)
		}
		return out, nil
	}
}

func AddressFrom(h host.Host, v host.Value) (codec.Address, error) {
	var a codec.Address
	b, err := Fixed(len(a))(h, v)
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

func AddressInto(h host.Host, a codec.Address) (host.Value, error) { return h.String(a.String()) }

func Bytes32From(h host.Host, v host.Value) (codec.Bytes32, error) {
	var out codec.Bytes32
	b, err := Fixed(len(out))(h, v)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func Bytes32Into(h host.Host, b codec.Bytes32) (host.Value, error) { return h.String(b.String()) }

// U256From reads base-10 text, or an exact-integer number when the value is
// not a string. When neither form applies both reasons are reported.
func U256From(h host.Host, v host.Value) (*uint256.Int, error) {
	s, textErr := StringFrom(h, v)
	if textErr == nil {
		n, err := codec.DecodeU256(s)
		if err != nil {
			return nil, safeerr.Invalidf("failed to parse U256: %w", err)
		}
		return n, nil
	}
	if !safeerr.Recoverable(textErr) {
		return nil, textErr
	}
	n, numErr := U64From(h, v)
	if numErr != nil {
		return nil, safeerr.Combine(textErr, numErr)
	}
	return uint256.NewInt(n), nil
}

func U256Into(h host.Host, n *uint256.Int) (host.Value, error) {
	return h.String(codec.EncodeU256(n))
}

// SecretKeyFrom reads a hex secp256k1 scalar. The error never includes the
// input.
func SecretKeyFrom(h host.Host, v host.Value) (*secp256k1.PrivateKey, error) {
	s, err := StringFrom(h, v)
	if err != nil {
		return nil, err
	}
	key, err := codec.ParseSecretKey(s)
	if err != nil {
		return nil, safeerr.Invalidf("failed to parse secret key: %w", err)
	}
	return key, nil
}

// SignatureFrom reads 65 bytes of hex: r, s and a recovery byte in
// {0, 1, 27, 28}.
func SignatureFrom(h host.Host, v host.Value) (codec.RecoverableSignature, error) {
	b, err := Fixed(65)(h, v)
	if err != nil {
		return codec.RecoverableSignature{}, err
	}
	var raw [65]byte
	copy(raw[:], b)
	sig, err := codec.ParseRecoverableSignature(raw)
	if err != nil {
		if errors.Is(err, codec.ErrRecoveryID) {
			return sig, safeerr.Invalidf("%w", err)
		}
		return sig, safeerr.Invalidf("failed to parse recoverable signature: %w", err)
	}
	return sig, nil
}

// SignatureInto encodes the signature with a normalized recovery byte.
func SignatureInto(h host.Host, sig codec.RecoverableSignature) (host.Value, error) {
	b := sig.Bytes()
	return h.String(codec.EncodeHex(b[:]))
}
