package builtins

import (
	"time"

	"github.com/cryguy/hostbridge/codec"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/marshal"
)

func (s *Set) codecOps() []Op {
	return []Op{
		{
			Name:  "bytes32Echo",
			Usage: "bytes32Echo(hex) -> 0x-prefixed lowercase 32-byte hex",
			Func: marshal.Bind(func(c *host.Call) (codec.Bytes32, error) {
				return marshal.Arg(c, 0, marshal.Bytes32From)
			}, marshal.Bytes32Into),
		},
		{
			Name:  "addressEcho",
			Usage: "addressEcho(hex) -> 0x-prefixed lowercase 20-byte hex",
			Func: marshal.Bind(func(c *host.Call) (codec.Address, error) {
				return marshal.Arg(c, 0, marshal.AddressFrom)
			}, marshal.AddressInto),
		},
		{
			Name:  "hexBytes",
			Usage: "hexBytes(hex | buffer) -> hex",
			Func: marshal.Bind(func(c *host.Call) ([]byte, error) {
				return marshal.Arg(c, 0, marshal.BytesFrom)
			}, marshal.BytesInto),
		},
		{
			Name:  "concatBytes",
			Usage: "concatBytes(...hex | buffer) -> ArrayBuffer",
			Func: marshal.Bind(func(c *host.Call) ([]byte, error) {
				var out []byte
				for i := 0; i < marshal.Len(c); i++ {
					b, err := marshal.Arg(c, i, marshal.BytesFrom)
					if err != nil {
						return nil, err
					}
					out = append(out, b...)
				}
				return out, nil
			}, marshal.BinaryInto),
		},
		{
			Name:  "keccakEach",
			Usage: "keccakEach([hex | buffer, ...]) -> [hash, ...]",
			Func: marshal.Bind(func(c *host.Call) ([]codec.Bytes32, error) {
				items, err := marshal.Arg(c, 0, marshal.Slice(marshal.BytesFrom))
				if err != nil {
					return nil, err
				}
				out := make([]codec.Bytes32, len(items))
				for i, b := range items {
					out[i] = codec.Keccak256(b)
				}
				return out, nil
			}, marshal.SliceInto(marshal.Bytes32Into)),
		},
		{
			Name:  "toMillis",
			Usage: "toMillis(ms) -> ms, round-tripped through a native duration",
			Func: marshal.Bind(func(c *host.Call) (time.Duration, error) {
				return marshal.Arg(c, 0, marshal.DurationFrom)
			}, marshal.DurationInto),
		},
	}
}
