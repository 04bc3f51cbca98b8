package cbor

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Encoder writes one CBOR data item per Encode call, recursing through
// nested values. The cycle-detecting sharing table and the string-ref
// namespace stack are shared across the recursion of a single call and
// cleared at the call boundary.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	w                *bufWriter
	opts             EncOptions
	overrideEncoders typeEncoderTable
	domainEncoders   typeEncoderTable

	sharing           encodeSharingTable
	nextShareIndex    int
	stringRefs        stringRefStack
	stringNamespacing bool
	stringReferencing bool
}

// Encode writes the CBOR encoding of v to the underlying sink and
// flushes. Instance state (sharing table, string-ref namespaces) is
// reset before every call and cleared again on exit.
func (e *Encoder) Encode(v any) error {
	e.sharing = encodeSharingTable{}
	e.nextShareIndex = 0
	e.stringRefs = stringRefStack{}
	e.stringNamespacing = e.opts.StringReferencing
	e.stringReferencing = e.opts.StringReferencing

	if err := e.encode(v); err != nil {
		return err
	}
	e.sharing = encodeSharingTable{}
	e.stringRefs = stringRefStack{}
	return e.w.flush()
}

// EncodeValue encodes one nested item in place. It is the emit path for
// registered type encoders and default callbacks, which receive the
// active Encoder mid-call; unlike Encode it does not reset instance
// state or flush.
func (e *Encoder) EncodeValue(v any) error {
	if e.sharing == nil {
		e.sharing = encodeSharingTable{}
	}
	return e.encode(v)
}

// EncodeToBytes encodes v against a detached buffer and returns the
// accumulated bytes instead of writing them to the sink. Registered
// encoders and default callbacks can use it when they need a child
// item's encoding in hand.
func (e *Encoder) EncodeToBytes(v any) ([]byte, error) {
	if e.sharing == nil {
		e.sharing = encodeSharingTable{}
	}
	savedW := e.w
	e.w = newBufWriterBytes()
	err := e.encode(v)
	out := append([]byte(nil), e.w.bytes()...)
	e.w = savedW
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Encoder) writeTag(tagNum uint64) error {
	return writeLengthHeader(e.w, MajorTypeTag, tagNum)
}

// encode dispatches one value: a caller-supplied type override first,
// then the built-in kind switch, then a standard-library domain-type
// default, then the user default callback, then failure.
func (e *Encoder) encode(v any) error {
	if v == nil {
		return e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, simpleValueNull))
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, simpleValueNull))
	}
	t := reflect.TypeOf(v)
	if enc, ok := e.overrideEncoders[t]; ok {
		return enc(e, v)
	}

	switch x := v.(type) {
	case []byte:
		return e.encodeBytesLike(x, false)
	case string:
		return e.encodeBytesLike([]byte(x), true)
	case bool:
		sv := simpleValueFalse
		if x {
			sv = simpleValueTrue
		}
		return e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, sv))
	case int:
		return e.encodeInteger(int64(x))
	case int8:
		return e.encodeInteger(int64(x))
	case int16:
		return e.encodeInteger(int64(x))
	case int32:
		return e.encodeInteger(int64(x))
	case int64:
		return e.encodeInteger(x)
	case uint:
		return e.encodeUnsignedNative(uint64(x))
	case uint8:
		return e.encodeUnsignedNative(uint64(x))
	case uint16:
		return e.encodeUnsignedNative(uint64(x))
	case uint32:
		return e.encodeUnsignedNative(uint64(x))
	case uint64:
		return e.encodeUnsignedNative(x)
	case float32:
		return e.encodeFloat(float64(x))
	case float64:
		return e.encodeFloat(x)
	case complex64:
		return e.encode(complex128(x))
	case Undefined:
		return e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, simpleValueUndefined))
	case breakMarker:
		return newEncodeError("cannot encode an internal break marker", nil)
	case []any:
		return e.encodeArray(x)
	case Tuple:
		return e.encodeArray([]any(x))
	case *Map:
		return e.encodeMapEntriesContainer(x, x.entries)
	case *FrozenMap:
		return e.encodeMapEntriesContainer(x, x.entries)
	case *Set:
		return e.encodeSet(x, x.items)
	case *FrozenSet:
		return e.encodeSet(x, x.items)
	case SimpleValue:
		return e.encodeSimpleValue(x)
	case CBORTag:
		return e.encodeCBORTag(x)
	}

	if enc, ok := e.domainEncoders[t]; ok {
		return enc(e, v)
	}
	if e.opts.Default != nil {
		handled, err := e.opts.Default(e, v)
		if err != nil {
			return newEncodeValueError("error in default callback", wrapHookError("default", err))
		}
		if handled {
			return nil
		}
	}
	return newEncodeError(fmt.Sprintf("no encoder registered for type %T", v), ErrUnencodableType)
}

// --- integers and floats ------------------------------------------------------

func (e *Encoder) encodeUnsignedNative(v uint64) error {
	return writeLengthHeader(e.w, MajorTypeUnsignedInteger, v)
}

func (e *Encoder) encodeInteger(v int64) error {
	if v >= 0 {
		return e.encodeUnsignedNative(uint64(v))
	}
	mag := uint64(-(v + 1))
	return writeLengthHeader(e.w, MajorTypeNegativeInteger, mag)
}

func (e *Encoder) encodeFloat(f float64) error {
	if math.IsNaN(f) {
		return e.w.write([]byte{encodeInitialByte(MajorTypeSimpleOrFloat, 25), 0x7e, 0x00})
	}
	if math.IsInf(f, 1) {
		return e.w.write([]byte{encodeInitialByte(MajorTypeSimpleOrFloat, 25), 0x7c, 0x00})
	}
	if math.IsInf(f, -1) {
		return e.w.write([]byte{encodeInitialByte(MajorTypeSimpleOrFloat, 25), 0xfc, 0x00})
	}
	if !e.opts.Mode.canonical() {
		return writeFloat64(e.w, f)
	}
	if float16RoundTrips(f) {
		return writeFloat16(e.w, f)
	}
	if float32RoundTrips(f) {
		return writeFloat32(e.w, f)
	}
	return writeFloat64(e.w, f)
}

func (e *Encoder) encodeSimpleValue(sv SimpleValue) error {
	b := byte(sv)
	if b < 24 {
		return e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, b))
	}
	if err := e.w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, 24)); err != nil {
		return err
	}
	return e.w.writeByte(b)
}

func (e *Encoder) encodeCBORTag(tag CBORTag) error {
	if err := e.writeTag(tag.Tag); err != nil {
		return err
	}
	if tag.Tag == TagStringRefNS {
		// An explicitly encoded namespace tag opens its own string-ref
		// scope, with referencing active inside it.
		e.stringRefs.open()
		prevRef := e.stringReferencing
		e.stringReferencing = true
		err := e.encode(tag.Value)
		e.stringReferencing = prevRef
		e.stringRefs.close()
		return err
	}
	return e.encode(tag.Value)
}

// --- strings -------------------------------------------------------------

// encodeBytesLike writes a byte or text string. With string referencing
// active, content the active namespace already knows is emitted as a
// tag-25 back-reference; otherwise the content is admitted (if it meets
// the threshold) and emitted inline.
func (e *Encoder) encodeBytesLike(data []byte, isText bool) error {
	if e.stringReferencing {
		if ns := e.stringRefs.active(); ns != nil {
			if idx, ok := ns.indexOf(data, isText); ok {
				if err := e.writeTag(TagStringRef); err != nil {
					return err
				}
				return e.encode(int64(idx))
			}
			ns.admit(data, isText)
		}
	}
	mt := MajorTypeByteString
	if isText {
		mt = MajorTypeTextString
	}
	if err := writeLengthHeader(e.w, mt, uint64(len(data))); err != nil {
		return err
	}
	return e.w.write(data)
}

// --- containers: cycle detection, namespacing, canonical sort ---------------

// identityKey extracts a stable, comparable identity for a
// container-kinded value, so recurrences of the same container (and only
// the same container) are recognized during cycle detection and value
// sharing. Zero-length slices are excluded: they may all share the
// runtime's zero-size allocation, and a container with no elements can
// neither cycle nor usefully be shared.
func identityKey(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return nil, false
		}
		type sliceIdentity struct {
			ptr uintptr
			len int
		}
		return sliceIdentity{ptr: rv.Pointer(), len: rv.Len()}, true
	case reflect.Map, reflect.Ptr:
		if rv.IsNil() {
			return nil, false
		}
		return rv.Pointer(), true
	default:
		return nil, false
	}
}

// withStringNamespace opens a tag-256 scope around the first container
// encountered while string namespacing is pending, then clears the flag
// for nested containers so a single namespace wraps the whole top-level
// value.
func (e *Encoder) withStringNamespace(fn func() error) error {
	if !e.stringNamespacing {
		return fn()
	}
	if err := e.writeTag(TagStringRefNS); err != nil {
		return err
	}
	e.stringRefs.open()
	prev := e.stringNamespacing
	e.stringNamespacing = false
	err := fn()
	e.stringNamespacing = prev
	e.stringRefs.close()
	return err
}

// withCycleDetection guards one container encode. A recurrence of a
// container currently being encoded is a cycle; a recurrence of a
// completed container becomes a tag-29 back-reference when value sharing
// assigned it an index. With sharing enabled every first encounter is
// wrapped in tag 28; with it disabled the entry exists only while the
// container is open, giving cycle detection without sharing tags.
func (e *Encoder) withCycleDetection(v any, fn func() error) error {
	key, ok := identityKey(v)
	if !ok {
		return fn()
	}
	if entry, found := e.sharing[key]; found {
		if entry.index == nil {
			return newEncodeValueError("cyclic data structure without value sharing", ErrCyclicStructure)
		}
		if err := e.writeTag(TagSharedRef); err != nil {
			return err
		}
		return e.encode(int64(*entry.index))
	}
	if e.opts.ValueSharing {
		idx := e.nextShareIndex
		e.nextShareIndex++
		e.sharing[key] = encodeShareEntry{index: &idx}
		if err := e.writeTag(TagMarkShareable); err != nil {
			return err
		}
		return fn()
	}
	e.sharing[key] = encodeShareEntry{index: nil}
	err := fn()
	delete(e.sharing, key)
	return err
}

// withDisabledValueSharing save-set-restores the value-sharing flag
// around a guarded region. Tag payloads that carry a synthesized tuple
// (rational, bigfloat, decimal, complex, IP carriers) use it because the
// tuple is not a user-visible shared value.
func (e *Encoder) withDisabledValueSharing(fn func() error) error {
	prev := e.opts.ValueSharing
	e.opts.ValueSharing = false
	err := fn()
	e.opts.ValueSharing = prev
	return err
}

// encodeContainer runs the shared steps of array/map encoding:
// string-namespace wrapping, cycle detection, and the length/indefinite
// header, with writeElements filling in the body.
func (e *Encoder) encodeContainer(identity any, mt MajorType, length uint64, writeElements func() error) error {
	return e.withStringNamespace(func() error {
		return e.withCycleDetection(identity, func() error {
			if e.opts.IndefiniteContainers {
				if err := writeIndefiniteHeader(e.w, mt); err != nil {
					return err
				}
				if err := writeElements(); err != nil {
					return err
				}
				return writeBreak(e.w)
			}
			if err := writeLengthHeader(e.w, mt, length); err != nil {
				return err
			}
			return writeElements()
		})
	})
}

func (e *Encoder) encodeArray(items []any) error {
	return e.encodeContainer(items, MajorTypeArray, uint64(len(items)), func() error {
		for _, it := range items {
			if err := e.encode(it); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) encodeMapEntriesContainer(identity any, entries []MapEntry) error {
	return e.encodeContainer(identity, MajorTypeMap, uint64(len(entries)), func() error {
		return e.writeMapEntries(entries)
	})
}

func (e *Encoder) writeMapEntries(entries []MapEntry) error {
	if e.opts.Mode.canonical() {
		sorted, err := e.sortEntriesCanonical(entries)
		if err != nil {
			return err
		}
		entries = sorted
	}
	for _, en := range entries {
		if err := e.encode(en.Key); err != nil {
			return err
		}
		if err := e.encode(en.Value); err != nil {
			return err
		}
	}
	return nil
}

// encodeSet writes tag 258 around an array of the set's items. The
// share wrapper sits outside the tag so a recurrence of the set is a
// back-reference to the whole tagged item.
func (e *Encoder) encodeSet(container any, items []any) error {
	return e.withStringNamespace(func() error {
		return e.withCycleDetection(container, func() error {
			if err := e.writeTag(TagSet); err != nil {
				return err
			}
			elems := items
			if e.opts.Mode.canonical() {
				sorted, err := e.sortItemsCanonical(items)
				if err != nil {
					return err
				}
				elems = sorted
			}
			if e.opts.IndefiniteContainers {
				if err := writeIndefiniteHeader(e.w, MajorTypeArray); err != nil {
					return err
				}
				for _, it := range elems {
					if err := e.encode(it); err != nil {
						return err
					}
				}
				return writeBreak(e.w)
			}
			if err := writeLengthHeader(e.w, MajorTypeArray, uint64(len(elems))); err != nil {
				return err
			}
			for _, it := range elems {
				if err := e.encode(it); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// --- canonical sort -----------------------------------------------------

// encodeKeyBytes produces the sort key for canonical ordering: the
// item's encoding with string referencing and value sharing disabled, so
// the ordering is determined by content rather than by what happened to
// be emitted earlier.
func (e *Encoder) encodeKeyBytes(v any) ([]byte, error) {
	prevRef := e.stringReferencing
	e.stringReferencing = false
	var out []byte
	err := e.withDisabledValueSharing(func() error {
		var ierr error
		out, ierr = e.EncodeToBytes(v)
		return ierr
	})
	e.stringReferencing = prevRef
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Encoder) canonicalLess(a, b []byte) bool {
	if e.opts.Mode.ctap2() {
		return bytes.Compare(a, b) < 0
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

func (e *Encoder) sortEntriesCanonical(entries []MapEntry) ([]MapEntry, error) {
	type scored struct {
		entry MapEntry
		bytes []byte
	}
	scoredEntries := make([]scored, len(entries))
	for i, en := range entries {
		b, err := e.encodeKeyBytes(en.Key)
		if err != nil {
			return nil, err
		}
		scoredEntries[i] = scored{entry: en, bytes: b}
	}
	sort.SliceStable(scoredEntries, func(i, j int) bool {
		return e.canonicalLess(scoredEntries[i].bytes, scoredEntries[j].bytes)
	})
	out := make([]MapEntry, len(scoredEntries))
	for i, s := range scoredEntries {
		out[i] = s.entry
	}
	return out, nil
}

func (e *Encoder) sortItemsCanonical(items []any) ([]any, error) {
	type scored struct {
		item  any
		bytes []byte
	}
	scoredItems := make([]scored, len(items))
	for i, it := range items {
		b, err := e.encodeKeyBytes(it)
		if err != nil {
			return nil, err
		}
		scoredItems[i] = scored{item: it, bytes: b}
	}
	sort.SliceStable(scoredItems, func(i, j int) bool {
		return e.canonicalLess(scoredItems[i].bytes, scoredItems[j].bytes)
	})
	out := make([]any, len(scoredItems))
	for i, s := range scoredItems {
		out[i] = s.item
	}
	return out, nil
}
