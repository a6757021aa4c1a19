package codec

// Address is a 20-byte account address.
type Address [20]byte

// Bytes32 is a 32-byte value such as a hash or digest.
type Bytes32 [32]byte

// ParseAddress decodes 40 hex digits, with or without 0x.
func ParseAddress(s string) (Address, error) {
	var a Address
	err := DecodeFixed(a[:], s)
	return a, err
}

func (a Address) String() string { return EncodeHex(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	return DecodeFixed(a[:], string(text))
}

// ParseBytes32 decodes 64 hex digits, with or without 0x.
func ParseBytes32(s string) (Bytes32, error) {
	var b Bytes32
	err := DecodeFixed(b[:], s)
	return b, err
}

func (b Bytes32) String() string { return EncodeHex(b[:]) }

func (b Bytes32) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bytes32) UnmarshalText(text []byte) error {
	return DecodeFixed(b[:], string(text))
}
