package builtins

import (
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/marshal"
	"github.com/cryguy/hostbridge/safeerr"
)

func (s *Set) numberOps() []Op {
	return []Op{
		{
			Name:  "u256Add",
			Usage: "u256Add(a, b) -> decimal string; overflow is an error",
			Func:  marshal.Bind(u256Add, marshal.U256Into),
		},
		{
			Name:  "u256DivMod",
			Usage: "u256DivMod(a, b) -> [quotient, remainder]",
			Func:  marshal.Bind(u256DivMod, marshal.Pair(marshal.U256Into, marshal.U256Into)),
		},
		{
			Name:  "u64Sum",
			Usage: "u64Sum([n, ...]) -> n; sums above 2^53-1 are rejected",
			Func:  marshal.Bind(u64Sum, marshal.U64Into),
		},
		{
			Name:  "optionalDefault",
			Usage: "optionalDefault(n | null, fallback) -> n or fallback",
			Func: marshal.Bind(func(c *host.Call) (uint64, error) {
				v, err := marshal.Arg(c, 0, marshal.Optional(marshal.U64From))
				if err != nil {
					return 0, err
				}
				if v != nil {
					return *v, nil
				}
				return marshal.Arg(c, 1, marshal.U64From)
			}, marshal.U64Into),
		},
		{
			Name:  "fail",
			Usage: "fail(message) throws Error(message)",
			Func: func(c *host.Call) (host.Value, error) {
				msg, err := marshal.Arg(c, 0, marshal.StringFrom)
				if err != nil {
					return nil, err
				}
				return nil, safeerr.New(msg)
			},
		},
	}
}

func u256Args(c *host.Call) (a, b *uint256.Int, err error) {
	if a, err = marshal.Arg(c, 0, marshal.U256From); err != nil {
		return nil, nil, err
	}
	if b, err = marshal.Arg(c, 1, marshal.U256From); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func u256Add(c *host.Call) (*uint256.Int, error) {
	a, b, err := u256Args(c)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, safeerr.Invalidf("u256Add: %s + %s overflows 256 bits", a.Dec(), b.Dec())
	}
	return sum, nil
}

func u256DivMod(c *host.Call) (marshal.Tuple[*uint256.Int, *uint256.Int], error) {
	var out marshal.Tuple[*uint256.Int, *uint256.Int]
	a, b, err := u256Args(c)
	if err != nil {
		return out, err
	}
	if b.IsZero() {
		return out, safeerr.Invalid("u256DivMod: division by zero")
	}
	out.First, out.Second = new(uint256.Int).DivMod(a, b, new(uint256.Int))
	return out, nil
}

func u64Sum(c *host.Call) (uint64, error) {
	ns, err := marshal.Arg(c, 0, marshal.Slice(marshal.U64From))
	if err != nil {
		return 0, err
	}
	var sum uint64
	for _, n := range ns {
		var carry uint64
		sum, carry = bits.Add64(sum, n, 0)
		if carry != 0 {
			return 0, safeerr.Unrepresentablef("u64Sum: sum overflows 64 bits")
		}
	}
	return sum, nil
}
