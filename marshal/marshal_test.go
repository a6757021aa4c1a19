package marshal

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"

	"github.com/cryguy/hostbridge/codec"
	"github.com/cryguy/hostbridge/host"
	"github.com/cryguy/hostbridge/host/hosttest"
	"github.com/cryguy/hostbridge/proxy"
	"github.com/cryguy/hostbridge/safeerr"
)

func newHost(t *testing.T) *hosttest.Host {
	t.Helper()
	h := hosttest.New()
	h.Signal = func(h host.Host, exc host.Value) error { return safeerr.Signal(h, exc) }
	h.Enter()
	t.Cleanup(func() { h.Leave() })
	return h
}

func message(err error) string {
	if e := safeerr.From(err); e != nil {
		if s, ok := e.Downgrade(); ok {
			return s
		}
	}
	return ""
}

func TestU64_Boundary(t *testing.T) {
	h := newHost(t)

	n, err := U64From(h, hosttest.Num(9007199254740991))
	if err != nil {
		t.Fatalf("2^53-1: %v", err)
	}
	if n != MaxSafeInteger {
		t.Errorf("2^53-1 = %d", n)
	}

	_, err = U64From(h, hosttest.Num(9007199254740992))
	if !errors.Is(err, ErrRange) {
		t.Fatalf("2^53 err = %v, want ErrRange", err)
	}
	if !safeerr.Recoverable(err) {
		t.Errorf("range error should be recoverable")
	}
}

func TestU64_Rejections(t *testing.T) {
	h := newHost(t)
	tests := []struct {
		in   float64
		want error
	}{
		{math.NaN(), ErrNaN},
		{math.Inf(1), ErrInfinite},
		{math.Inf(-1), ErrInfinite},
		{-1, ErrNegative},
		{1.5, ErrFractional},
		{1e300, ErrRange},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		_, err := U64From(h, hosttest.Num(tt.in))
		if !errors.Is(err, tt.want) {
			t.Errorf("U64From(%v) err = %v, want %v", tt.in, err, tt.want)
			continue
		}
		if e := safeerr.From(err); e.Class() != safeerr.ClassValidation {
			t.Errorf("U64From(%v) class = %v, want validation", tt.in, e.Class())
		}
		seen[message(err)] = true
	}
	if len(seen) != len(tests) {
		t.Errorf("expected %d distinct messages, got %d: %v", len(tests), len(seen), seen)
	}

	for _, f := range []float64{0, 1, 42, 1 << 40} {
		n, err := U64From(h, hosttest.Num(f))
		if err != nil || float64(n) != f {
			t.Errorf("U64From(%v) = %d, %v", f, n, err)
		}
	}
}

func TestU64_NegativeMessageNamesValue(t *testing.T) {
	h := newHost(t)
	_, err := U64From(h, hosttest.Num(-7))
	if got := message(err); !strings.Contains(got, "-7") {
		t.Errorf("message = %q, want it to name -7", got)
	}
}

func TestU64_WrongKind(t *testing.T) {
	h := newHost(t)
	_, err := U64From(h, hosttest.Str("5"))
	var e *safeerr.Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want *safeerr.Error", err)
	}
	if _, ok := e.Payload().(safeerr.Mismatch); !ok {
		t.Errorf("payload = %T, want Mismatch", e.Payload())
	}
}

func TestU64Into_Range(t *testing.T) {
	h := newHost(t)
	v, err := U64Into(h, MaxSafeInteger)
	if err != nil {
		t.Fatalf("U64Into(max): %v", err)
	}
	if hosttest.NumOf(v) != 9007199254740991 {
		t.Errorf("U64Into(max) = %v", hosttest.NumOf(v))
	}

	_, err = U64Into(h, MaxSafeInteger+1)
	e := safeerr.From(err)
	if e == nil || e.Class() != safeerr.ClassRepresentation {
		t.Fatalf("U64Into(2^53) err = %v, want representation error", err)
	}
	if h.Throws() != 0 {
		t.Errorf("conversion must not signal, throws = %d", h.Throws())
	}
}

func TestU32(t *testing.T) {
	h := newHost(t)
	n, err := U32From(h, hosttest.Num(math.MaxUint32))
	if err != nil || n != math.MaxUint32 {
		t.Errorf("U32From(max) = %d, %v", n, err)
	}
	if _, err := U32From(h, hosttest.Num(math.MaxUint32+1)); !errors.Is(err, ErrRange) {
		t.Errorf("U32From(max+1) err = %v, want ErrRange", err)
	}
}

func TestDuration(t *testing.T) {
	h := newHost(t)
	tests := []struct {
		ms   float64
		want time.Duration
	}{
		{0, 0},
		{1000, time.Second},
		{1.5, 1500 * time.Microsecond},
		{60000, time.Minute},
	}
	for _, tt := range tests {
		d, err := DurationFrom(h, hosttest.Num(tt.ms))
		if err != nil {
			t.Fatalf("DurationFrom(%v): %v", tt.ms, err)
		}
		if d != tt.want {
			t.Errorf("DurationFrom(%v) = %v, want %v", tt.ms, d, tt.want)
		}
		back, err := DurationInto(h, d)
		if err != nil {
			t.Fatal(err)
		}
		if hosttest.NumOf(back) != tt.ms {
			t.Errorf("DurationInto(%v) = %v ms, want %v", d, hosttest.NumOf(back), tt.ms)
		}
	}

	for in, want := range map[float64]error{
		-1:          ErrNegative,
		math.Inf(1): ErrInfinite,
		1e300:       ErrRange,
	} {
		if _, err := DurationFrom(h, hosttest.Num(in)); !errors.Is(err, want) {
			t.Errorf("DurationFrom(%v) err = %v, want %v", in, err, want)
		}
	}
	if _, err := DurationFrom(h, hosttest.Num(math.NaN())); !errors.Is(err, ErrNaN) {
		t.Errorf("DurationFrom(NaN) err = %v, want ErrNaN", err)
	}
}

func TestBytes32_Scenario(t *testing.T) {
	h := newHost(t)
	in := "0x0100020000000000000000000000000000000000000000000000000000000000"

	b, err := Bytes32From(h, hosttest.Str(in))
	if err != nil {
		t.Fatalf("Bytes32From: %v", err)
	}
	if b[0] != 1 || b[2] != 2 {
		t.Errorf("bytes = %x", b)
	}
	out, err := Bytes32Into(h, b)
	if err != nil {
		t.Fatal(err)
	}
	if got := hosttest.StrOf(out); got != in {
		t.Errorf("re-encoded = %q, want %q", got, in)
	}
}

func TestFixed_Rejects(t *testing.T) {
	h := newHost(t)
	_, err := AddressFrom(h, hosttest.Str("0x1234"))
	if !errors.Is(err, codec.ErrLength) {
		t.Errorf("short address err = %v, want ErrLength", err)
	}
	_, err = AddressFrom(h, hosttest.Num(1))
	if err == nil || !strings.Contains(message(err), "string") {
		t.Errorf("number address err = %v, want kind mismatch", err)
	}
}

func TestBytes_BinaryAndHex(t *testing.T) {
	h := newHost(t)
	want := []byte{0xde, 0xad, 0xbe, 0xef}

	got, err := BytesFrom(h, hosttest.Bin(want))
	if err != nil {
		t.Fatalf("binary: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("binary mismatch (-want +got):\n%s", diff)
	}

	for _, s := range []string{"deadbeef", "0xdeadbeef", "0xDEADBEEF"} {
		got, err = BytesFrom(h, hosttest.Str(s))
		if err != nil {
			t.Fatalf("hex %q: %v", s, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("hex %q mismatch (-want +got):\n%s", s, diff)
		}
	}

	if _, err := BytesFrom(h, hosttest.Str("xyz")); !errors.Is(err, codec.ErrInvalidHex) {
		t.Errorf("bad hex err = %v, want ErrInvalidHex", err)
	}
	if _, err := BytesFrom(h, hosttest.Bool(true)); err == nil {
		t.Error("boolean accepted as bytes")
	}

	hv, err := BytesInto(h, want)
	if err != nil {
		t.Fatal(err)
	}
	if got := hosttest.StrOf(hv); got != "0xdeadbeef" {
		t.Errorf("BytesInto = %q", got)
	}
	bv, err := BinaryInto(h, want)
	if err != nil {
		t.Fatal(err)
	}
	if bv.Kind() != host.KindBinary {
		t.Errorf("BinaryInto kind = %v", bv.Kind())
	}
}

func TestU256_TextAndNumber(t *testing.T) {
	h := newHost(t)

	n, err := U256From(h, hosttest.Str("123456789012345678901234567890"))
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if n.Dec() != "123456789012345678901234567890" {
		t.Errorf("text = %s", n.Dec())
	}

	n, err = U256From(h, hosttest.Num(42))
	if err != nil {
		t.Fatalf("number fallback: %v", err)
	}
	if !n.Eq(uint256.NewInt(42)) {
		t.Errorf("number fallback = %s", n.Dec())
	}

	v, err := U256Into(h, uint256.NewInt(7))
	if err != nil || hosttest.StrOf(v) != "7" {
		t.Errorf("U256Into = %v, %v", v, err)
	}
}

func TestU256_MalformedTextDoesNotFallBack(t *testing.T) {
	h := newHost(t)
	_, err := U256From(h, hosttest.Str("0x10"))
	if !errors.Is(err, codec.ErrInvalidU256) {
		t.Errorf("err = %v, want ErrInvalidU256", err)
	}
}

func TestU256_ReportsBothReasons(t *testing.T) {
	h := newHost(t)
	_, err := U256From(h, hosttest.Num(-1))
	msg := message(err)
	if !strings.Contains(msg, "string") || !strings.Contains(msg, "negative") {
		t.Errorf("message = %q, want both the text and the numeric reason", msg)
	}
	if !errors.Is(err, ErrNegative) {
		t.Errorf("combined error should wrap ErrNegative: %v", err)
	}
}

func TestU256_ThrownNeverFallsBack(t *testing.T) {
	h := newHost(t)
	v := hosttest.Throwing(host.KindString, "getter exploded")

	_, err := U256From(h, v)
	if !safeerr.IsThrown(err) {
		t.Fatalf("err = %v, want already-signaled", err)
	}
	if safeerr.Recoverable(err) {
		t.Error("already-signaled error reported recoverable")
	}
	if h.Throws() != 1 {
		t.Errorf("throws = %d, want 1", h.Throws())
	}

	_, thrown := safeerr.Finish(h, nil, err)
	if thrown == nil {
		t.Fatal("Finish dropped the pending exception")
	}
	if h.Throws() != 1 {
		t.Errorf("Finish signaled again, throws = %d", h.Throws())
	}
	if got := hosttest.Message(h.Pending()); got != "getter exploded" {
		t.Errorf("pending = %q", got)
	}
}

func TestOptional(t *testing.T) {
	h := newHost(t)
	from := Optional(U64From)

	for _, v := range []host.Value{hosttest.Null(), hosttest.Undef()} {
		got, err := from(h, v)
		if err != nil || got != nil {
			t.Errorf("Optional(%v) = %v, %v; want nil, nil", v.Kind(), got, err)
		}
	}
	got, err := from(h, hosttest.Num(3))
	if err != nil || got == nil || *got != 3 {
		t.Errorf("Optional(3) = %v, %v", got, err)
	}
	if _, err := from(h, hosttest.Num(-3)); !errors.Is(err, ErrNegative) {
		t.Errorf("Optional(-3) err = %v", err)
	}

	into := OptionalInto(U64Into)
	nv, err := into(h, nil)
	if err != nil || nv.Kind() != host.KindNull {
		t.Errorf("OptionalInto(nil) = %v, %v", nv, err)
	}
}

func TestSlice_OrderAndFailure(t *testing.T) {
	h := newHost(t)
	from := Slice(U64From)

	got, err := from(h, hosttest.Arr(hosttest.Num(3), hosttest.Num(1), hosttest.Num(2)))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{3, 1, 2}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	_, err = from(h, hosttest.Arr(hosttest.Num(1), hosttest.Num(1.5), hosttest.Num(-1)))
	if !errors.Is(err, ErrFractional) {
		t.Errorf("err = %v, want first failing element's ErrFractional", err)
	}

	if _, err := from(h, hosttest.Num(1)); err == nil {
		t.Error("number accepted as array")
	}

	hv, err := SliceInto(U64Into)(h, []uint64{5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if elems := hosttest.ElemsOf(hv); len(elems) != 2 || hosttest.NumOf(elems[1]) != 6 {
		t.Errorf("SliceInto = %v", elems)
	}
}

func TestSlice_ThrownElementAborts(t *testing.T) {
	h := newHost(t)
	calls := 0
	count := func(h host.Host, v host.Value) (string, error) {
		calls++
		return StringFrom(h, v)
	}
	arr := hosttest.Arr(
		hosttest.Str("a"),
		hosttest.Throwing(host.KindString, "bad element"),
		hosttest.Str("c"),
	)
	_, err := Slice(count)(h, arr)
	if !safeerr.IsThrown(err) {
		t.Fatalf("err = %v, want already-signaled", err)
	}
	if calls != 2 {
		t.Errorf("converted %d elements, want to stop after 2", calls)
	}
	if h.Throws() != 1 {
		t.Errorf("throws = %d, want 1", h.Throws())
	}
}

func TestPair_Indices(t *testing.T) {
	h := newHost(t)
	v, err := Pair(StringInto, U64Into)(h, Tuple[string, uint64]{First: "a", Second: 2})
	if err != nil {
		t.Fatal(err)
	}
	elems := hosttest.ElemsOf(v)
	if len(elems) != 2 {
		t.Fatalf("len = %d, want 2", len(elems))
	}
	if hosttest.StrOf(elems[0]) != "a" || hosttest.NumOf(elems[1]) != 2 {
		t.Errorf("pair = [%v, %v]", hosttest.StrOf(elems[0]), hosttest.NumOf(elems[1]))
	}

	back, err := PairFrom(StringFrom, U64From)(h, v)
	if err != nil {
		t.Fatal(err)
	}
	if back.First != "a" || back.Second != 2 {
		t.Errorf("PairFrom = %+v", back)
	}
}

func TestObject_FieldsAndGet(t *testing.T) {
	h := newHost(t)
	obj, err := Object(h,
		Field("name", "counter", StringInto),
		Field("count", uint64(3), U64Into),
	)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"name", "count"}, hosttest.Keys(obj)); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	n, err := Get(h, obj, "count", U64From)
	if err != nil || n != 3 {
		t.Errorf("Get(count) = %d, %v", n, err)
	}
	if _, err := Get(h, obj, "missing", U64From); err == nil {
		t.Error("missing property converted to u64")
	}

	_, err = Object(h, Field("big", uint64(1)<<60, U64Into))
	if e := safeerr.From(err); e == nil || e.Class() != safeerr.ClassRepresentation {
		t.Errorf("Object with unrepresentable field err = %v", err)
	}
}

func TestArgs(t *testing.T) {
	h := newHost(t)
	cb := hosttest.Fn(func(...host.Value) (host.Value, error) { return nil, nil })
	c := &host.Call{Host: h, Name: "op", Args: []host.Value{hosttest.Num(1), cb}}

	if Len(c) != 2 {
		t.Errorf("Len = %d", Len(c))
	}
	n, err := Arg(c, 0, U64From)
	if err != nil || n != 1 {
		t.Errorf("Arg(0) = %d, %v", n, err)
	}
	_, err = Arg(c, 2, U64From)
	if !safeerr.Recoverable(err) {
		t.Errorf("out of range err = %v, want recoverable", err)
	}
	if !strings.Contains(message(err), "missing argument 2") {
		t.Errorf("out of range message = %q", message(err))
	}
	if _, err := Callback(c, 1); err != nil {
		t.Errorf("Callback(1): %v", err)
	}
	if _, err := Callback(c, 0); err == nil {
		t.Error("number accepted as callback")
	}
}

func TestFinish(t *testing.T) {
	h := newHost(t)

	v, thrown := Finish(h, uint64(5), nil, U64Into)
	if thrown != nil || hosttest.NumOf(v) != 5 {
		t.Fatalf("Finish ok = %v, %v", v, thrown)
	}

	_, thrown = Finish(h, uint64(MaxSafeInteger+1), nil, U64Into)
	if thrown == nil {
		t.Fatal("unrepresentable result not signaled")
	}
	if !strings.Contains(hosttest.Message(h.Pending()), "exceeded limits") {
		t.Errorf("pending = %q", hosttest.Message(h.Pending()))
	}
	if h.Throws() != 1 {
		t.Errorf("throws = %d, want 1", h.Throws())
	}
}

func TestBind(t *testing.T) {
	h := newHost(t)
	f := Bind(func(c *host.Call) (uint64, error) {
		a, err := Arg(c, 0, U64From)
		if err != nil {
			return 0, err
		}
		return a * 2, nil
	}, U64Into)

	v, err := f(&host.Call{Host: h, Args: []host.Value{hosttest.Num(21)}})
	if err != nil || hosttest.NumOf(v) != 42 {
		t.Errorf("bound = %v, %v", v, err)
	}
	if _, err := f(&host.Call{Host: h}); err == nil {
		t.Error("missing argument not reported")
	}
}

func TestSignature(t *testing.T) {
	h := newHost(t)
	key, err := codec.ParseSecretKey("0x" + strings.Repeat("11", 32))
	if err != nil {
		t.Fatal(err)
	}
	sig := codec.Sign(key, codec.Keccak256([]byte("x")))
	raw := sig.Bytes()

	for _, v := range []byte{0, 1, 27, 28} {
		raw[64] = v
		parsed, err := SignatureFrom(h, hosttest.Str(codec.EncodeHex(raw[:])))
		if err != nil {
			t.Fatalf("recovery byte %d: %v", v, err)
		}
		if parsed.RecoveryID() != v%27 {
			t.Errorf("recovery byte %d -> %d", v, parsed.RecoveryID())
		}
	}
	raw[64] = 2
	_, err = SignatureFrom(h, hosttest.Str(codec.EncodeHex(raw[:])))
	if !errors.Is(err, codec.ErrRecoveryID) {
		t.Errorf("recovery byte 2 err = %v", err)
	}

	out, err := SignatureInto(h, sig)
	if err != nil {
		t.Fatal(err)
	}
	if s := hosttest.StrOf(out); len(s) != 132 {
		t.Errorf("SignatureInto length = %d, want 132", len(s))
	}
}

func TestSecretKey_ErrorOmitsInput(t *testing.T) {
	h := newHost(t)
	secret := "0x" + strings.Repeat("ab", 31)
	_, err := SecretKeyFrom(h, hosttest.Str(secret))
	if err == nil {
		t.Fatal("short key accepted")
	}
	if strings.Contains(message(err), "abab") {
		t.Errorf("message leaks key material: %q", message(err))
	}
}

func TestProxy_RoundTrip(t *testing.T) {
	h := newHost(t)
	tbl := proxy.NewTable()
	released := false
	p := proxy.New(10, func(int) { released = true })

	v, err := ProxyInto[int](tbl)(h, p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ProxyFrom[int](tbl)(h, v)
	if err != nil {
		t.Fatal(err)
	}
	if got.Value() != 10 {
		t.Errorf("value = %d", got.Value())
	}
	if _, err := ProxyFrom[string](tbl)(h, v); err == nil {
		t.Error("proxy of int resolved as string")
	}

	id, _ := ProxyID(h, v)
	tbl.Delete(id)
	if !released {
		t.Error("release did not run after the table dropped the last reference")
	}
	if _, err := ProxyFrom[int](tbl)(h, v); err == nil {
		t.Error("deleted proxy still resolves")
	}
}
