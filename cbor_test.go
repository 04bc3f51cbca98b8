package cbor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDumps(t *testing.T, v any, opts ...EncOption) []byte {
	t.Helper()
	b, err := Dumps(v, opts...)
	if err != nil {
		t.Fatalf("Dumps(%#v) failed: %v", v, err)
	}
	return b
}

func mustLoads(t *testing.T, data []byte, opts ...DecOption) any {
	t.Helper()
	v, err := Loads(data, opts...)
	if err != nil {
		t.Fatalf("Loads(%x) failed: %v", data, err)
	}
	return v
}

func TestRoundTripUnsignedIntegers(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"zero", 0},
		{"one", 1},
		{"23", 23},
		{"24", 24},
		{"255", 255},
		{"256", 256},
		{"65535", 65535},
		{"65536", 65536},
		{"max_uint32", math.MaxUint32},
		{"max_uint32_plus_1", math.MaxUint32 + 1},
		{"max_uint64", math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustLoads(t, mustDumps(t, tt.value))
			if !valueEqual(got, tt.value) {
				t.Errorf("got %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestRoundTripSignedIntegers(t *testing.T) {
	tests := []struct {
		name  string
		value int64
	}{
		{"zero", 0},
		{"one", 1},
		{"negative_one", -1},
		{"negative_24", -24},
		{"negative_25", -25},
		{"negative_256", -256},
		{"negative_257", -257},
		{"max_int64", math.MaxInt64},
		{"min_int64", math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustLoads(t, mustDumps(t, tt.value))
			if !valueEqual(got, tt.value) {
				t.Errorf("got %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestRoundTripByteString(t *testing.T) {
	tests := [][]byte{
		{},
		{0x01, 0x02, 0x03, 0x04},
		bytes.Repeat([]byte{0xAB}, 300), // forces a 2-byte length header
	}
	for _, data := range tests {
		got := mustLoads(t, mustDumps(t, data))
		gb, ok := got.([]byte)
		if !ok || !bytesEqual(gb, data) {
			t.Errorf("got %#v, want %#v", got, data)
		}
	}
}

func TestRoundTripTextString(t *testing.T) {
	tests := []string{"", "a", "IETF", "\"\\", "ü", "streaming"}
	for _, s := range tests {
		got := mustLoads(t, mustDumps(t, s))
		if got != s {
			t.Errorf("got %q, want %q", got, s)
		}
	}
}

func TestRoundTripBoolNullUndefined(t *testing.T) {
	if got := mustLoads(t, mustDumps(t, false)); got != false {
		t.Errorf("got %#v, want false", got)
	}
	if got := mustLoads(t, mustDumps(t, true)); got != true {
		t.Errorf("got %#v, want true", got)
	}
	if got := mustLoads(t, mustDumps(t, nil)); got != nil {
		t.Errorf("got %#v, want nil", got)
	}
	got := mustLoads(t, mustDumps(t, Undefined{}))
	if _, ok := got.(Undefined); !ok {
		t.Errorf("got %#v, want Undefined", got)
	}
}

func TestRoundTripFloats(t *testing.T) {
	tests := []float64{0.0, 1.0, 1.5, 100000.0, 1.1, -0.0}
	for _, f := range tests {
		got := mustLoads(t, mustDumps(t, f))
		gf, ok := got.(float64)
		if !ok || gf != f {
			t.Errorf("got %#v, want %v", got, f)
		}
	}
}

func TestFloat64NaN(t *testing.T) {
	data := mustDumps(t, math.NaN())
	if hex.EncodeToString(data) != "f97e00" {
		t.Errorf("got %x, want f97e00", data)
	}
	got := mustLoads(t, data)
	if gf, ok := got.(float64); !ok || !math.IsNaN(gf) {
		t.Errorf("got %#v, want NaN", got)
	}
}

func TestRoundTripArray(t *testing.T) {
	v := []any{int64(1), int64(2), int64(3)}
	got := mustLoads(t, mustDumps(t, v))
	if !valueEqual(got, v) {
		t.Errorf("got %#v, want %#v", got, v)
	}
}

func TestRoundTripNestedArray(t *testing.T) {
	v := []any{
		[]any{int64(1)},
		[]any{int64(2), int64(3)},
		[]any{int64(4), int64(5)},
	}
	got := mustLoads(t, mustDumps(t, v))
	if !valueEqual(got, v) {
		t.Errorf("got %#v, want %#v", got, v)
	}
}

func TestRoundTripMap(t *testing.T) {
	m := NewMap()
	m.Append("a", int64(1))
	m.Append("b", []any{int64(2), int64(3)})
	got := mustLoads(t, mustDumps(t, m))
	gm, ok := got.(*Map)
	if !ok {
		t.Fatalf("got %T, want *Map", got)
	}
	if !valueEqual(gm, m) {
		t.Errorf("got %#v, want %#v", gm, m)
	}
}

func TestRoundTripTag(t *testing.T) {
	tag := CBORTag{Tag: 1000, Value: int64(42)}
	got := mustLoads(t, mustDumps(t, tag))
	gt, ok := got.(CBORTag)
	if !ok || !valueEqual(gt, tag) {
		t.Errorf("got %#v, want %#v", got, tag)
	}
}

func TestRoundTripBigInt(t *testing.T) {
	n := new(big.Int)
	n.SetString("18446744073709551616", 10) // 2^64, overflows uint64
	got := mustLoads(t, mustDumps(t, n))
	if !valueEqual(got, n) {
		t.Errorf("got %#v, want %#v", got, n)
	}

	neg := new(big.Int)
	neg.SetString("-18446744073709551617", 10) // -(2^64)-1
	got2 := mustLoads(t, mustDumps(t, neg))
	if !valueEqual(got2, neg) {
		t.Errorf("got %#v, want %#v", got2, neg)
	}
}

func TestRoundTripDateTime(t *testing.T) {
	tm := time.Date(2013, 3, 21, 20, 4, 0, 0, time.UTC)
	got := mustLoads(t, mustDumps(t, tm))
	gt, ok := got.(time.Time)
	if !ok || !gt.Equal(tm) {
		t.Errorf("got %#v, want %#v", got, tm)
	}
}

func TestDateTimeAsTimestamp(t *testing.T) {
	tm := time.Unix(1363896240, 0).UTC()
	data := mustDumps(t, tm, WithDatetimeAsTimestamp(true))
	if hex.EncodeToString(data) != "c11a514b67b0" {
		t.Errorf("got %x, want c11a514b67b0", data)
	}
	got := mustLoads(t, data)
	gt, ok := got.(time.Time)
	if !ok || !gt.Equal(tm) {
		t.Errorf("got %#v, want %#v", got, tm)
	}
}

func TestIndefiniteLengthArray(t *testing.T) {
	data, err := hex.DecodeString("9f018202039f0405ffff")
	if err != nil {
		t.Fatal(err)
	}
	got := mustLoads(t, data)
	want := []any{int64(1), []any{int64(2), int64(3)}, []any{int64(4), int64(5)}}
	if !valueEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestIndefiniteLengthMap(t *testing.T) {
	data, err := hex.DecodeString("bf61610161629f0203ffff")
	if err != nil {
		t.Fatal(err)
	}
	got := mustLoads(t, data)
	gm, ok := got.(*Map)
	if !ok {
		t.Fatalf("got %T, want *Map", got)
	}
	want := NewMap()
	want.Append("a", int64(1))
	want.Append("b", []any{int64(2), int64(3)})
	if !valueEqual(gm, want) {
		t.Errorf("got %#v, want %#v", gm, want)
	}
}

func TestIndefiniteLengthByteString(t *testing.T) {
	data, err := hex.DecodeString("5f42010243030405ff")
	if err != nil {
		t.Fatal(err)
	}
	got := mustLoads(t, data)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	gb, ok := got.([]byte)
	if !ok || !bytesEqual(gb, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestIndefiniteLengthTextString(t *testing.T) {
	data, err := hex.DecodeString("7f657374726561646d696e67ff")
	if err != nil {
		t.Fatal(err)
	}
	if got := mustLoads(t, data); got != "streaming" {
		t.Errorf("got %q, want streaming", got)
	}
}

func TestIndefiniteStringChunkMismatchedMajorType(t *testing.T) {
	// 0x5f opens an indefinite byte string; 0x61 is a text-string chunk.
	data, err := hex.DecodeString("5f6161ff")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Loads(data); err == nil {
		t.Fatal("expected an error for a mismatched indefinite-length chunk")
	}
}

func TestIndefiniteStringChunkNestedIndefinite(t *testing.T) {
	// 0x5f opens an indefinite byte string; another 0x5f chunk inside is
	// itself indefinite-length, which is not allowed.
	data, err := hex.DecodeString("5f5fffff")
	if err != nil {
		t.Fatal(err)
	}
	_, err = Loads(data)
	if err == nil {
		t.Fatal("expected an error for a nested indefinite-length chunk")
	}
	if !errors.Is(err, ErrNestedIndefiniteChunk) {
		t.Errorf("got %v, want ErrNestedIndefiniteChunk", err)
	}
}

func TestSimpleValue(t *testing.T) {
	sv16, err := NewSimpleValue(16)
	if err != nil {
		t.Fatal(err)
	}
	got := mustLoads(t, mustDumps(t, sv16))
	if gv, ok := got.(SimpleValue); !ok || gv != sv16 {
		t.Errorf("got %#v, want %#v", got, sv16)
	}

	if _, err := NewSimpleValue(24); err == nil {
		t.Error("expected reserved simple value 24 to be rejected")
	}
	if _, err := NewSimpleValue(31); err == nil {
		t.Error("expected reserved simple value 31 to be rejected")
	}
}

func TestNestingDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, WithValueSharing(false))
	var v any = int64(0)
	for i := 0; i < 10; i++ {
		v = []any{v}
	}
	if err := enc.Encode(v); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Loads(buf.Bytes(), WithMaxDepth(5)); err == nil {
		t.Fatal("expected a recursion-limit error")
	}
	if _, err := Loads(buf.Bytes(), WithMaxDepth(20)); err != nil {
		t.Fatalf("expected success within the depth budget, got: %v", err)
	}
}

func TestCyclicStructureRequiresValueSharing(t *testing.T) {
	m := NewMap()
	m.Append("self", m)
	if _, err := Dumps(m); err == nil {
		t.Fatal("expected a cyclic-structure error without value sharing")
	}
	if _, err := Dumps(m, WithValueSharing(true)); err != nil {
		t.Fatalf("expected cyclic encoding to succeed with value sharing, got: %v", err)
	}
}

func TestValueSharingRoundTrip(t *testing.T) {
	shared := []any{int64(1), int64(2)}
	v := []any{shared, shared}
	data := mustDumps(t, v, WithValueSharing(true))
	got := mustLoads(t, data)
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %#v, want a 2-element array", got)
	}
	first, _ := arr[0].([]any)
	second, _ := arr[1].([]any)
	if !valueEqual(first, second) {
		t.Errorf("shared elements diverged: %#v vs %#v", first, second)
	}
}

func TestCanonicalModeKeyOrderIsDeterministic(t *testing.T) {
	a := NewMap()
	a.Append("b", int64(2))
	a.Append("aa", int64(1))

	b := NewMap()
	b.Append("aa", int64(1))
	b.Append("b", int64(2))

	da := mustDumps(t, a, WithCanonical(true))
	db := mustDumps(t, b, WithCanonical(true))
	if !bytes.Equal(da, db) {
		t.Errorf("canonical encodings diverged by insertion order: %x vs %x", da, db)
	}
}

func TestCanonicalFloatNarrowing(t *testing.T) {
	data := mustDumps(t, 1.5, WithCanonical(true))
	if hex.EncodeToString(data) != "f93e00" {
		t.Errorf("got %x, want f93e00 (3-byte float16 form)", data)
	}
}

func TestStringReferenceRoundTrip(t *testing.T) {
	long := "this string is long enough to clear the admission threshold"
	v := []any{long, long, long}
	data := mustDumps(t, v, WithStringReferencing(true))
	got := mustLoads(t, data)
	if !valueEqual(got, v) {
		t.Errorf("got %#v, want %#v", got, v)
	}
}

func TestObjectHook(t *testing.T) {
	data := mustDumps(t, NewMap())
	hookCalled := false
	_, err := Loads(data, WithObjectHook(func(dec *Decoder, m *Map) (any, error) {
		hookCalled = true
		return "replaced", nil
	}))
	if err != nil {
		t.Fatalf("Loads failed: %v", err)
	}
	if !hookCalled {
		t.Error("object_hook was never invoked")
	}
}

func TestTagHook(t *testing.T) {
	data := mustDumps(t, CBORTag{Tag: 9999, Value: "payload"})
	got, err := Loads(data, WithTagHook(func(dec *Decoder, tag CBORTag) (any, error) {
		return tag.Value, nil
	}))
	if err != nil {
		t.Fatalf("Loads failed: %v", err)
	}
	if got != "payload" {
		t.Errorf("got %#v, want payload", got)
	}
}

func TestStrErrorsPolicy(t *testing.T) {
	// A text string chunk containing an invalid UTF-8 byte.
	data, err := hex.DecodeString("61ff")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Loads(data); err == nil {
		t.Fatal("expected strict policy to reject invalid UTF-8")
	}
	got, err := Loads(data, WithStrErrors("ignore"))
	if err != nil {
		t.Fatalf("ignore policy should not fail: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string under ignore policy", got)
	}
}

func TestLoadDumpViaReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := Dump([]any{int64(1), int64(2), int64(3)}, &buf); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []any{int64(1), int64(2), int64(3)}
	if !valueEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestPrematureEOF(t *testing.T) {
	// A 4-byte length field with only 1 byte behind it.
	if _, err := Loads([]byte{0x1a, 0x00}); err == nil {
		t.Fatal("expected an error for truncated input")
	} else {
		var eof *PrematureEOF
		if !errors.As(err, &eof) {
			t.Fatalf("got %T (%v), want *PrematureEOF", err, err)
		}
		if !errors.Is(err, ErrUnexpectedEndOfData) {
			t.Error("PrematureEOF should unwrap to ErrUnexpectedEndOfData")
		}
	}
}

func TestLoneBreakIsError(t *testing.T) {
	_, err := Loads([]byte{0xff})
	if err == nil {
		t.Fatal("expected an error for a lone break byte")
	}
	if !errors.Is(err, ErrUnexpectedBreak) {
		t.Errorf("got %v, want ErrUnexpectedBreak", err)
	}
}

func TestSetRoundTrip(t *testing.T) {
	data, _ := hex.DecodeString("d9010283010203")
	got := mustLoads(t, data)
	s, ok := got.(*Set)
	if !ok || s.Len() != 3 {
		t.Fatalf("got %#v, want a 3-element *Set", got)
	}
	out := mustDumps(t, s)
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes: got %x, want %x", out, data)
	}
	if !valueEqual(mustLoads(t, out), s) {
		t.Error("set did not survive the round trip")
	}
}

func TestFrozenMapAsMapKey(t *testing.T) {
	// {{1: 2}: 3}: the inner map is a key, so it decodes frozen.
	data, _ := hex.DecodeString("a1a1010203")
	got := mustLoads(t, data)
	m, ok := got.(*Map)
	if !ok || m.Len() != 1 {
		t.Fatalf("got %#v, want a single-entry *Map", got)
	}
	key := NewFrozenMap([]MapEntry{{Key: uint64(1), Value: uint64(2)}})
	v, found := m.Get(key)
	if !found || !valueEqual(v, uint64(3)) {
		t.Errorf("lookup by frozen-map key failed: %#v", m.Entries())
	}
}

func TestDecimalFractionVector(t *testing.T) {
	// 273.15 as 4([-2, 27315]).
	data, _ := hex.DecodeString("c48221196ab3")
	got := mustLoads(t, data)
	d, ok := got.(decimal.Decimal)
	if !ok || !d.Equal(decimal.RequireFromString("273.15")) {
		t.Fatalf("got %#v, want decimal 273.15", got)
	}
	out := mustDumps(t, d)
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes: got %x, want %x", out, data)
	}
}

func TestBignumBoundaries(t *testing.T) {
	twoPow64 := new(big.Int).Lsh(big.NewInt(1), 64)

	tests := []struct {
		name  string
		value any
		hex   string
	}{
		{"max_uint64_native", uint64(math.MaxUint64), "1bffffffffffffffff"},
		{"2^64_is_tag_2", new(big.Int).Set(twoPow64), "c249010000000000000000"},
		{"-2^64_native", new(big.Int).Neg(twoPow64), "3bffffffffffffffff"},
		{
			"-2^64-1_is_tag_3",
			new(big.Int).Sub(new(big.Int).Neg(twoPow64), big.NewInt(1)),
			"c349010000000000000000",
		},
		{"small_bignum_is_native", big.NewInt(5), "05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustDumps(t, tt.value)
			if hex.EncodeToString(got) != tt.hex {
				t.Errorf("got %x, want %s", got, tt.hex)
			}
			back := mustLoads(t, got)
			if !valueEqual(back, tt.value) {
				t.Errorf("round trip changed the value: %#v != %#v", back, tt.value)
			}
		})
	}
}

func TestRewindExcessSeekableSource(t *testing.T) {
	item := mustDumps(t, []any{int64(1), int64(2), int64(3)})
	stream := append(append([]byte(nil), item...), 0xaa, 0xbb, 0xcc, 0xdd)
	r := bytes.NewReader(stream)
	got, err := Load(r)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !valueEqual(got, []any{uint64(1), uint64(2), uint64(3)}) {
		t.Fatalf("got %#v", got)
	}
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if pos != int64(len(item)) {
		t.Errorf("source cursor at %d, want %d (one byte past the decoded item)", pos, len(item))
	}
}

func TestEncodeToBytes(t *testing.T) {
	enc := NewEncoder(io.Discard)
	b, err := enc.EncodeToBytes([]any{int64(1), int64(2)})
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(b) != "820102" {
		t.Errorf("got %x, want 820102", b)
	}
}

func TestIndefiniteContainersOption(t *testing.T) {
	data := mustDumps(t, []any{int64(1), int64(2)}, WithIndefiniteContainers(true))
	if hex.EncodeToString(data) != "9f0102ff" {
		t.Errorf("got %x, want 9f0102ff", data)
	}
	if !valueEqual(mustLoads(t, data), []any{uint64(1), uint64(2)}) {
		t.Error("indefinite-length array did not round-trip")
	}
}

func TestCTAP2KeyOrdering(t *testing.T) {
	m := NewMap()
	m.Append("z", int64(1))
	m.Append(uint64(300), int64(2))

	// Length-first: "z" (2 encoded bytes) sorts before 300 (3 bytes).
	canonical := mustDumps(t, m, WithCanonical(true))
	if hex.EncodeToString(canonical) != "a2617a0119012c02" {
		t.Errorf("canonical: got %x, want a2617a0119012c02", canonical)
	}

	// Byte-wise: 0x19 sorts before 0x61, so 300 comes first.
	ctap2 := mustDumps(t, m, WithCTAP2(true))
	if hex.EncodeToString(ctap2) != "a219012c02617a01" {
		t.Errorf("ctap2: got %x, want a219012c02617a01", ctap2)
	}
}

func TestMACAddressStaysTagged(t *testing.T) {
	data, _ := hex.DecodeString("d9010446010203040506")
	got := mustLoads(t, data)
	tag, ok := got.(CBORTag)
	if !ok || tag.Tag != TagLegacyIPOrMAC {
		t.Fatalf("got %#v, want an unresolved tag-260 value", got)
	}
	if b, ok := tag.Value.([]byte); !ok || len(b) != 6 {
		t.Errorf("got %#v, want the 6 raw MAC bytes", tag.Value)
	}
}

func TestIPAddressTag(t *testing.T) {
	data, _ := hex.DecodeString("d83444c0a80001")
	got := mustLoads(t, data)
	addr, ok := got.(netip.Addr)
	if !ok || addr != netip.AddrFrom4([4]byte{192, 168, 0, 1}) {
		t.Fatalf("got %#v, want 192.168.0.1", got)
	}
	out := mustDumps(t, addr)
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoding changed the bytes: got %x, want %x", out, data)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.MustParse("c9313c5a-5e3e-4a9a-8f1e-0f0e2d7a5b1c")
	data := mustDumps(t, id)
	if data[0] != 0xd8 || data[1] != 0x25 {
		t.Fatalf("got %x, want a tag-37 prefix", data)
	}
	got := mustLoads(t, data)
	if gid, ok := got.(uuid.UUID); !ok || gid != id {
		t.Errorf("got %#v, want %v", got, id)
	}
}

type temperature struct {
	Celsius float64
}

func TestDefaultEncoderFallback(t *testing.T) {
	if _, err := Dumps(temperature{Celsius: 21.5}); err == nil {
		t.Fatal("expected an unencodable-type error without a default callback")
	}
	data, err := Dumps(temperature{Celsius: 21.5}, WithDefaultEncoder(func(enc *Encoder, v any) (bool, error) {
		tmp, ok := v.(temperature)
		if !ok {
			return false, nil
		}
		return true, enc.EncodeValue(tmp.Celsius)
	}))
	if err != nil {
		t.Fatalf("Dumps with default callback failed: %v", err)
	}
	if got := mustLoads(t, data); !valueEqual(got, 21.5) {
		t.Errorf("got %#v, want 21.5", got)
	}
}

type label string

func TestTypeEncoderOverride(t *testing.T) {
	data, err := Dumps(label("hello"), WithTypeEncoder(label(""), func(enc *Encoder, v any) error {
		return enc.EncodeValue(CBORTag{Tag: 42, Value: string(v.(label))})
	}))
	if err != nil {
		t.Fatal(err)
	}
	got := mustLoads(t, data)
	tag, ok := got.(CBORTag)
	if !ok || tag.Tag != 42 {
		t.Fatalf("got %#v, want a tag-42 wrapper from the override", got)
	}
}

func TestDuplicateMapKeyConformance(t *testing.T) {
	// {1: 0, 1: 0}
	data, _ := hex.DecodeString("a201000100")
	got, err := Loads(data)
	if err != nil {
		t.Fatalf("lax decoding should tolerate duplicate keys: %v", err)
	}
	if m, ok := got.(*Map); !ok || m.Len() != 2 {
		t.Fatalf("got %#v, want a 2-entry *Map preserving the raw wire order", got)
	}
	_, err = Loads(data, WithDecoderConformanceMode(ConformanceStrict))
	if err == nil {
		t.Fatal("expected strict conformance to reject a duplicate map key")
	}
	if !errors.Is(err, ErrDuplicateMapKey) {
		t.Errorf("got %v, want ErrDuplicateMapKey", err)
	}

	// {{1: 0, 1: 0}: 2}: the duplicate sits inside a map used as a key.
	nested, _ := hex.DecodeString("a1a20100010002")
	if _, err := Loads(nested, WithDecoderConformanceMode(ConformanceStrict)); !errors.Is(err, ErrDuplicateMapKey) {
		t.Errorf("got %v, want ErrDuplicateMapKey for a duplicate inside a frozen map key", err)
	}
}

func TestEncoderConformanceModeSelectsOrdering(t *testing.T) {
	m := NewMap()
	m.Append("z", int64(1))
	m.Append(uint64(300), int64(2))

	canonical := mustDumps(t, m, WithEncoderConformanceMode(ConformanceCanonical))
	if !bytes.Equal(canonical, mustDumps(t, m, WithCanonical(true))) {
		t.Error("ConformanceCanonical and WithCanonical diverged")
	}
	ctap2 := mustDumps(t, m, WithEncoderConformanceMode(ConformanceCtap2Canonical))
	if !bytes.Equal(ctap2, mustDumps(t, m, WithCTAP2(true))) {
		t.Error("ConformanceCtap2Canonical and WithCTAP2 diverged")
	}
	if bytes.Equal(canonical, ctap2) {
		t.Error("canonical and CTAP2 key ordering should differ for these keys")
	}

	// Lax and Strict leave encoding untouched.
	lax := mustDumps(t, m)
	if !bytes.Equal(lax, mustDumps(t, m, WithEncoderConformanceMode(ConformanceStrict))) {
		t.Error("ConformanceStrict should not change encoded output")
	}

	short := mustDumps(t, 1.5, WithEncoderConformanceMode(ConformanceCanonical))
	if hex.EncodeToString(short) != "f93e00" {
		t.Errorf("got %x, want f93e00 under canonical conformance", short)
	}
}

func TestNonMinimalArgumentConformance(t *testing.T) {
	// 0x1800 encodes 0 with a one-byte argument it doesn't need.
	nonMinimal, _ := hex.DecodeString("1800")
	if got := mustLoads(t, nonMinimal); !valueEqual(got, uint64(0)) {
		t.Fatalf("got %#v, want 0 under lax decoding", got)
	}
	_, err := Loads(nonMinimal, WithDecoderConformanceMode(ConformanceStrict))
	if !errors.Is(err, ErrNonMinimalEncoding) {
		t.Errorf("got %v, want ErrNonMinimalEncoding", err)
	}

	// 0x1818 is the minimal form of 24 and must stay accepted.
	minimal, _ := hex.DecodeString("1818")
	got, err := Loads(minimal, WithDecoderConformanceMode(ConformanceStrict))
	if err != nil {
		t.Fatalf("minimal encoding rejected under strict conformance: %v", err)
	}
	if !valueEqual(got, uint64(24)) {
		t.Errorf("got %#v, want 24", got)
	}
}
