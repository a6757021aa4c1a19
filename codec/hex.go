// Package codec converts byte-oriented domain types to and from their text
// forms: lowercase 0x-prefixed hex for byte arrays, base-10 text for 256-bit
// integers, and secp256k1 keys and recoverable signatures.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidHex = errors.New("invalid hex")
	ErrLength     = errors.New("wrong length")
)

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && s[1] == 'x' {
		return s[2:]
	}
	return s
}

// EncodeHex returns b as lowercase hex with a 0x prefix. The result is always
// 2*len(b)+2 characters long.
func EncodeHex(b []byte) string {
	out := make([]byte, 2+hex.EncodedLen(len(b)))
	out[0], out[1] = '0', 'x'
	hex.Encode(out[2:], b)
	return string(out)
}

// DecodeHex decodes hex text of any even length, with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(trim0x(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return b, nil
}

// DecodeFixed decodes hex text into dst. The text must hold exactly len(dst)
// bytes after the optional 0x prefix.
func DecodeFixed(dst []byte, s string) error {
	body := trim0x(s)
	if len(body) != 2*len(dst) {
		return fmt.Errorf("%w: want %d hex digits, got %d", ErrLength, 2*len(dst), len(body))
	}
	if _, err := hex.Decode(dst, []byte(body)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return nil
}
