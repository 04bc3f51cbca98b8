package cbor

import (
	"encoding/hex"
	"reflect"
	"testing"
)

// RFC 8949 Appendix A test vectors, decoded through the public Loads
// entry point.
func TestRFC8949Appendix(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want any
	}{
		{"0", "00", uint64(0)},
		{"1", "01", uint64(1)},
		{"10", "0a", uint64(10)},
		{"21", "1815", uint64(21)},
		{"23", "17", uint64(23)},
		{"24", "1818", uint64(24)},
		{"25", "1819", uint64(25)},
		{"100", "1864", uint64(100)},
		{"767", "1902ff", uint64(767)},
		{"1000", "1903e8", uint64(1000)},
		{"1000000", "1a000f4240", uint64(1000000)},
		{"1000000000000", "1b000000e8d4a51000", uint64(1000000000000)},
		{"-1", "20", int64(-1)},
		{"-10", "29", int64(-10)},
		{"-100", "3863", int64(-100)},
		{"-1000", "3903e7", int64(-1000)},
		{"min_int64", "3b7fffffffffffffff", int64(-9223372036854775808)},
		{"empty_byte_string", "40", []byte{}},
		{"h'01020304'", "4401020304", []byte{1, 2, 3, 4}},
		{"empty_text_string", "60", ""},
		{"a", "6161", "a"},
		{"IETF", "6449455446", "IETF"},
		{"backslash_quote", "62225c", "\"\\"},
		{"unicode_u", "62c3bc", "ü"},
		{"empty_array", "80", []any{}},
		{"[1, 2, 3]", "83010203", []any{uint64(1), uint64(2), uint64(3)}},
		{
			"[[1], [2, 3], [4, 5]]",
			"83810182020382040500",
			[]any{
				[]any{uint64(1)},
				[]any{uint64(2), uint64(3)},
				[]any{uint64(4), uint64(5)},
			},
		},
		{"false", "f4", false},
		{"true", "f5", true},
		{"null", "f6", nil},
		{"0.0_half", "f90000", 0.0},
		{"1.0_half", "f93c00", 1.0},
		{"1.5_half", "f93e00", 1.5},
		{"100000.0_single", "fa47c35000", 100000.0},
		{"1.1_double", "fb3ff199999999999a", 1.1},
		{
			"indefinite_byte_string",
			"5f42010243030405ff",
			[]byte{0x01, 0x02, 0x03, 0x04, 0x05},
		},
		{"indefinite_text_string", "7f657374726561646d696e67ff", "streaming"},
		{
			"indefinite_array",
			"9f018202039f0405ffff",
			[]any{uint64(1), []any{uint64(2), uint64(3)}, []any{uint64(4), uint64(5)}},
		},
		{"short_indefinite_array", "9f0102ff", []any{uint64(1), uint64(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.hex)
			if err != nil {
				t.Fatalf("failed to decode hex: %v", err)
			}
			got, err := Loads(data)
			if err != nil {
				t.Fatalf("Loads(%s) failed: %v", tt.hex, err)
			}
			if !valueEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRFC8949MapVectors(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want []MapEntry
	}{
		{"empty_map", "a0", nil},
		{
			"{1: 2, 3: 4}",
			"a201020304",
			[]MapEntry{{Key: uint64(1), Value: uint64(2)}, {Key: uint64(3), Value: uint64(4)}},
		},
		{
			"{'a': 1, 'b': [2, 3]}",
			"a26161016162820203",
			[]MapEntry{
				{Key: "a", Value: uint64(1)},
				{Key: "b", Value: []any{uint64(2), uint64(3)}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.hex)
			if err != nil {
				t.Fatalf("failed to decode hex: %v", err)
			}
			got, err := Loads(data)
			if err != nil {
				t.Fatalf("Loads(%s) failed: %v", tt.hex, err)
			}
			m, ok := got.(*Map)
			if !ok {
				t.Fatalf("got %T, want *Map", got)
			}
			want := NewMap()
			for _, e := range tt.want {
				want.Append(e.Key, e.Value)
			}
			if !valueEqual(m, want) {
				t.Errorf("got %#v, want %#v", m, want)
			}
		})
	}
}

func TestRFC8949Tags(t *testing.T) {
	t.Run("tag_0_datetime", func(t *testing.T) {
		data, _ := hex.DecodeString("c074323031332d30332d32315432303a30343a30305a")
		got, err := Loads(data)
		if err != nil {
			t.Fatalf("Loads failed: %v", err)
		}
		if _, ok := got.(interface{ Unix() int64 }); !ok {
			t.Fatalf("got %#v, want a time.Time-like value", got)
		}
	})
	t.Run("tag_1_epoch", func(t *testing.T) {
		data, _ := hex.DecodeString("c11a514b67b0")
		got, err := Loads(data)
		if err != nil {
			t.Fatalf("Loads failed: %v", err)
		}
		if _, ok := got.(interface{ Unix() int64 }); !ok {
			t.Fatalf("got %#v, want a time.Time-like value", got)
		}
	})
	t.Run("tag_32_uri_is_unresolved", func(t *testing.T) {
		// Tag 32 (URI) has no registered decoder, so it must surface as an
		// unresolved CBORTag rather than a decode error.
		data, _ := hex.DecodeString("d82076687474703a2f2f7777772e6578616d706c652e636f6d")
		got, err := Loads(data)
		if err != nil {
			t.Fatalf("Loads failed: %v", err)
		}
		tag, ok := got.(CBORTag)
		if !ok || tag.Tag != 32 || tag.Value != "http://www.example.com" {
			t.Errorf("got %#v, want CBORTag{32, \"http://www.example.com\"}", got)
		}
	})
}

func TestSharedArrayBackReference(t *testing.T) {
	// Tag 28 wraps [1, tag-29 back-ref to index 0], so element 1 must
	// resolve to the array itself (a cycle) rather than a value-equal
	// copy - compared here by slice identity since a structural compare
	// would recurse forever on the cycle.
	data, _ := hex.DecodeString("d81c8201d81d00")
	got, err := Loads(data)
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %#v, want a 2-element array", got)
	}
	back, ok := arr[1].([]any)
	if !ok || reflect.ValueOf(back).Pointer() != reflect.ValueOf(arr).Pointer() {
		t.Errorf("back-reference did not resolve to the shared array itself: %#v", arr[1])
	}
}

func TestSharedRefToPendingSlotFails(t *testing.T) {
	// Tag 29 pointing at the slot the enclosing tag 28 is still filling
	// is only legal once the slot's value exists; a bare scalar payload
	// never fills early, so the inner reference must fail.
	data, _ := hex.DecodeString("d81cd81d00")
	if _, err := Loads(data); err == nil {
		t.Fatal("expected a pending-slot error")
	}
}

func TestStringRefNamespaceEmission(t *testing.T) {
	// An array of two identical strings round-trips through a string-ref
	// namespace: the whole item is wrapped in tag 256 and the second
	// occurrence is emitted as a tag-25 back-reference.
	arr := []any{"first", "first"}
	data, err := Dumps(arr, WithStringReferencing(true))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 3 || data[0] != 0xd9 || data[1] != 0x01 || data[2] != 0x00 {
		t.Fatalf("got %x, want a tag-256 (string-ref namespace) prefix", data)
	}
	if n := len(data); data[n-3] != 0xd8 || data[n-2] != 0x19 || data[n-1] != 0x00 {
		t.Fatalf("got %x, want a trailing tag-25 back-reference to index 0", data)
	}
	got, err := Loads(data)
	if err != nil {
		t.Fatal(err)
	}
	if !valueEqual(got, arr) {
		t.Errorf("got %#v, want %#v", got, arr)
	}
}

func TestStringRefDecoding(t *testing.T) {
	// tag 256 around ["first", tag-25(0)] expands the reference.
	data, _ := hex.DecodeString("d9010082656669727374d81900")
	got, err := Loads(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"first", "first"}
	if !valueEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}
