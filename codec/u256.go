package codec

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var ErrInvalidU256 = errors.New("invalid 256-bit unsigned integer")

// EncodeU256 returns n in base 10.
func EncodeU256(n *uint256.Int) string { return n.Dec() }

// DecodeU256 parses a base-10 unsigned integer below 2^256. Signs, hex and
// empty input are rejected.
func DecodeU256(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidU256)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidU256, s)
		}
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidU256, s, err)
	}
	return n, nil
}
