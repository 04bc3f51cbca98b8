package cbor

import (
	"bytes"
	"math"
	"math/big"
	"net/mail"
	"reflect"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Undefined is the CBOR "undefined" simple value (major type 7, value 23).
// It is distinct from untyped nil, which represents CBOR null.
type Undefined struct{}

// breakMarker is the internal sentinel for the break byte (0xff). It never
// appears in a decoded value; the encoder rejects it if handed one.
type breakMarker struct{}

// SimpleValue is a CBOR simple value: an integer 0-23 or 32-255. The
// range 24-31 is reserved by RFC 8949 and rejected by NewSimpleValue.
type SimpleValue byte

// NewSimpleValue constructs a SimpleValue, rejecting the reserved range.
func NewSimpleValue(v byte) (SimpleValue, error) {
	if v >= 24 && v <= 31 {
		return 0, &DecodeValueError{Message: "simple value 24-31 is reserved", Err: ErrInvalidSimpleValue}
	}
	return SimpleValue(v), nil
}

// CBORTag is a semantic tag: a nonnegative tag number paired with an
// inner value. Equality is structural on both Tag and Value.
type CBORTag struct {
	Tag   uint64
	Value any
}

// Tuple is an immutable ordered sequence, produced by the decoder in
// places that require a hashable array (map keys, and the payload arrays
// of numeric and network tags) in place of a mutable []any.
type Tuple []any

// MapEntry is one key/value pair of a Map or FrozenMap, in insertion order.
type MapEntry struct {
	Key   any
	Value any
}

// Map is a mutable, insertion-order-preserving CBOR map. It is not built
// on Go's native map type because CBOR map keys may themselves be maps
// or arrays, neither of which Go allows as native map keys; lookups use
// valueEqual instead of native key comparison.
type Map struct {
	entries []MapEntry
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The returned slice
// must not be mutated by the caller.
func (m *Map) Entries() []MapEntry { return m.entries }

// Get looks up a key by structural equality, returning the found flag.
func (m *Map) Get(key any) (any, bool) {
	for _, e := range m.entries {
		if valueEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Set inserts or updates key, preserving the original position on update.
func (m *Map) Set(key, value any) {
	for i, e := range m.entries {
		if valueEqual(e.Key, key) {
			m.entries[i].Value = value
			return
		}
	}
	m.entries = append(m.entries, MapEntry{Key: key, Value: value})
}

// Append adds a new entry without checking for an existing key. Used by
// the decoder, which must tolerate duplicate keys under lax conformance
// and preserve raw wire order.
func (m *Map) Append(key, value any) {
	m.entries = append(m.entries, MapEntry{Key: key, Value: value})
}

// FrozenMap is the immutable counterpart of Map, used whenever a map
// value must itself be usable as a map key. Its equality is
// content-derived via valueEqual over its entries, the same as Map's,
// but it can never be mutated after construction.
type FrozenMap struct {
	entries []MapEntry
}

// NewFrozenMap freezes the given entries (in the given order) into a
// FrozenMap. The caller must not retain a mutable reference to entries.
func NewFrozenMap(entries []MapEntry) *FrozenMap {
	return &FrozenMap{entries: entries}
}

// Len returns the number of entries.
func (m *FrozenMap) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order.
func (m *FrozenMap) Entries() []MapEntry { return m.entries }

// Get looks up a key by structural equality.
func (m *FrozenMap) Get(key any) (any, bool) {
	for _, e := range m.entries {
		if valueEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Set is a mutable, insertion-order-preserving CBOR set (tag 258).
type Set struct {
	items []any
}

// NewSet returns an empty Set.
func NewSet() *Set { return &Set{} }

// Len returns the number of items.
func (s *Set) Len() int { return len(s.items) }

// Items returns the items in insertion order.
func (s *Set) Items() []any { return s.items }

// Add inserts an item if it is not already present (by valueEqual).
func (s *Set) Add(v any) {
	for _, item := range s.items {
		if valueEqual(item, v) {
			return
		}
	}
	s.items = append(s.items, v)
}

// FrozenSet is the immutable counterpart of Set.
type FrozenSet struct {
	items []any
}

// NewFrozenSet freezes the given items into a FrozenSet.
func NewFrozenSet(items []any) *FrozenSet {
	return &FrozenSet{items: items}
}

// Len returns the number of items.
func (s *FrozenSet) Len() int { return len(s.items) }

// Items returns the items in insertion order.
func (s *FrozenSet) Items() []any { return s.items }

// valueEqual performs structural equality over the value-model kinds.
// Integers compare across representations (uint64, int64, *big.Int hold
// the same number space), NaN floats compare equal to each other, and
// maps and sets compare as unordered collections even though both
// preserve insertion order.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytesEqual(av, bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case uint64:
		switch bv := b.(type) {
		case uint64:
			return av == bv
		case int64:
			return bv >= 0 && uint64(bv) == av
		case *big.Int:
			return bv.IsUint64() && bv.Uint64() == av
		}
		return false
	case int64:
		switch bv := b.(type) {
		case int64:
			return av == bv
		case uint64:
			return av >= 0 && uint64(av) == bv
		case *big.Int:
			return bv.IsInt64() && bv.Int64() == av
		}
		return false
	case *big.Int:
		switch bv := b.(type) {
		case *big.Int:
			return av.Cmp(bv) == 0
		case uint64:
			return av.IsUint64() && av.Uint64() == bv
		case int64:
			return av.IsInt64() && av.Int64() == bv
		}
		return false
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		return floatEqual(av, bv)
	case complex128:
		bv, ok := b.(complex128)
		return ok && floatEqual(real(av), real(bv)) && floatEqual(imag(av), imag(bv))
	case SimpleValue:
		bv, ok := b.(SimpleValue)
		return ok && av == bv
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case CBORTag:
		bv, ok := b.(CBORTag)
		return ok && av.Tag == bv.Tag && valueEqual(av.Value, bv.Value)
	case []any:
		bv, ok := b.([]any)
		return ok && sliceEqual(av, bv)
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && sliceEqual([]any(av), []any(bv))
	case *Map:
		bv, ok := b.(*Map)
		return ok && mappingEqual(av.entries, bv.entries)
	case *FrozenMap:
		bv, ok := b.(*FrozenMap)
		return ok && mappingEqual(av.entries, bv.entries)
	case *Set:
		bv, ok := b.(*Set)
		return ok && unorderedEqual(av.items, bv.items)
	case *FrozenSet:
		bv, ok := b.(*FrozenSet)
		return ok && unorderedEqual(av.items, bv.items)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case *big.Float:
		bv, ok := b.(*big.Float)
		return ok && av.Cmp(bv) == 0
	case *big.Rat:
		bv, ok := b.(*big.Rat)
		return ok && av.Cmp(bv) == 0
	case *regexp.Regexp:
		bv, ok := b.(*regexp.Regexp)
		return ok && av.String() == bv.String()
	case *mail.Message:
		// Bodies are one-shot readers; header equality is the best a
		// non-destructive comparison can do.
		bv, ok := b.(*mail.Message)
		return ok && reflect.DeepEqual(av.Header, bv.Header)
	default:
		return a == b
	}
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}

func sliceEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// mappingEqual compares map entries as a key-to-value mapping rather
// than an entry sequence: insertion order is preserved on the wire but
// does not participate in equality. Duplicate keys are tolerated by
// pairing entries off one-to-one.
func mappingEqual(a, b []MapEntry) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, ae := range a {
		for i, be := range b {
			if !matched[i] && valueEqual(ae.Key, be.Key) && valueEqual(ae.Value, be.Value) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// unorderedEqual compares set items without regard to insertion order.
func unorderedEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, av := range a {
		for i, bv := range b {
			if !matched[i] && valueEqual(av, bv) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}
