package cbor

import (
	"math"
	"math/big"
	"strings"
	"unicode/utf8"
)

// defaultMaxDepth is the recursion ceiling applied when no explicit
// limit is configured.
const defaultMaxDepth = 950

// maxStringChunk bounds how much of a single (possibly huge) length
// field the decoder will allocate in one read. Larger claimed lengths
// are read incrementally so a hostile header can't force a giant
// allocation before any payload bytes have arrived.
const maxStringChunk = 65536

// containerPreallocLimit bounds the element count trusted from a
// container's length header for preallocation, for the same reason.
const containerPreallocLimit = 4096

// Decoder reads one CBOR data item per Decode call, recursing through
// nested items. All instance state - the depth counter, sharing
// registry, and string-ref namespace stack - is shared across the
// recursion of a single call and cleared at the call boundary.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r           *bufReader
	opts        DecOptions
	tagDecoders tagDecoderTable

	depth             int
	immutableContext  bool
	pendingShareIndex *int
	sharing           sharingRegistry
	stringRefs        stringRefStack
}

func (d *Decoder) maxDepth() int {
	if d.opts.MaxDepth > 0 {
		return d.opts.MaxDepth
	}
	return defaultMaxDepth
}

// Decode reads exactly one CBOR item from the underlying source and
// returns its value-model representation. On success, if the source is
// seekable, the reader un-consumes any buffered look-ahead bytes so the
// source cursor sits one byte past the decoded item. On failure no
// rewind is attempted.
func (d *Decoder) Decode() (any, error) {
	d.depth = 0
	d.immutableContext = false
	d.pendingShareIndex = nil
	d.sharing.reset()
	d.stringRefs = stringRefStack{}

	v, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	d.sharing.reset()
	if rerr := d.r.rewindExcess(); rerr != nil {
		return nil, rerr
	}
	return v, nil
}

// decodeInContext runs one nested decode with the immutable-context
// flag temporarily set, restoring the previous value on every exit path.
func (d *Decoder) decodeInContext(immutable bool) (any, error) {
	prev := d.immutableContext
	d.immutableContext = immutable
	v, err := d.decodeValue()
	d.immutableContext = prev
	return v, err
}

// consumePendingShareIndex returns and clears the share-registry index
// a tag-28 wrapper allocated for the value about to be decoded, if any.
func (d *Decoder) consumePendingShareIndex() *int {
	idx := d.pendingShareIndex
	d.pendingShareIndex = nil
	return idx
}

func (d *Decoder) err(msg string, cause error) error {
	return newDecodeError(d.r.offset(), msg, cause)
}

func (d *Decoder) valueErr(msg string, cause error) error {
	return newDecodeValueError(d.r.offset(), msg, cause)
}

func (d *Decoder) hookErr(purpose string, cause error) error {
	return newDecodeValueError(d.r.offset(), "", wrapHookError(purpose, cause))
}

// decodeValue reads one item: bump the depth, read the initial byte,
// dispatch on major type.
func (d *Decoder) decodeValue() (any, error) {
	d.depth++
	if d.depth > d.maxDepth() {
		d.depth--
		return nil, d.err("maximum nesting depth exceeded", ErrNestingDepthExceeded)
	}
	defer func() { d.depth-- }()

	b, err := d.r.readByte()
	if err != nil {
		return nil, err
	}
	mt, ai := decodeInitialByte(b)
	switch mt {
	case MajorTypeUnsignedInteger:
		return d.decodeUnsigned(ai)
	case MajorTypeNegativeInteger:
		return d.decodeNegative(ai)
	case MajorTypeByteString, MajorTypeTextString:
		return d.decodeString(mt, ai)
	case MajorTypeArray:
		return d.decodeArray(ai)
	case MajorTypeMap:
		return d.decodeMap(ai)
	case MajorTypeTag:
		return d.decodeTag(ai)
	case MajorTypeSimpleOrFloat:
		return d.decodeSimpleOrFloat(ai)
	default:
		return nil, d.err("invalid major type", ErrInvalidMajorType)
	}
}

func (d *Decoder) decodeUnsigned(ai byte) (any, error) {
	v, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, d.err("indefinite length is not valid for integers", ErrInvalidMajorType)
	}
	return v, nil
}

func (d *Decoder) decodeNegative(ai byte) (any, error) {
	u, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, d.err("indefinite length is not valid for integers", ErrInvalidMajorType)
	}
	return negateUnsigned(u), nil
}

// negateUnsigned computes -(u+1), the major-1 value transform, widening
// to *big.Int only when the magnitude would overflow int64.
func negateUnsigned(u uint64) any {
	if u <= uint64(math.MaxInt64) {
		return -(int64(u) + 1)
	}
	n := new(big.Int).SetUint64(u)
	n.Add(n, big.NewInt(1))
	return n.Neg(n)
}

func (d *Decoder) decodeSimpleOrFloat(ai byte) (any, error) {
	switch {
	case ai < simpleValueFalse:
		return NewSimpleValue(ai)
	case ai == simpleValueFalse:
		return false, nil
	case ai == simpleValueTrue:
		return true, nil
	case ai == simpleValueNull:
		return nil, nil
	case ai == simpleValueUndefined:
		return Undefined{}, nil
	case ai == 24:
		b, err := d.r.readByte()
		if err != nil {
			return nil, err
		}
		sv, err := NewSimpleValue(b)
		if err != nil {
			return nil, d.valueErr("invalid simple value", err)
		}
		return sv, nil
	case ai == 25:
		f, err := readFloat16(d.r)
		return f, err
	case ai == 26:
		f, err := readFloat32(d.r)
		return f, err
	case ai == 27:
		f, err := readFloat64(d.r)
		return f, err
	case ai == 31:
		// Break bytes inside indefinite-length items are consumed by the
		// container loops (via peekByte) before decodeValue ever sees them,
		// so reaching one here means it is stray.
		return nil, d.err("unexpected break", ErrUnexpectedBreak)
	default:
		return nil, d.err("reserved additional-info value in major type 7", ErrInvalidMajorType)
	}
}

// --- byte/text strings -------------------------------------------------------

func (d *Decoder) decodeString(mt MajorType, ai byte) (any, error) {
	length, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	var data []byte
	if indefinite {
		data, err = d.decodeIndefiniteStringChunks(mt)
	} else {
		data, err = d.readStringBytes(length)
	}
	if err != nil {
		return nil, err
	}
	if mt == MajorTypeTextString {
		s, err := decodeUTF8(data, d.opts.StrErrors)
		if err != nil {
			return nil, d.valueErr("invalid UTF-8 in text string", err)
		}
		d.admitStringRef([]byte(s), true)
		return s, nil
	}
	out := append([]byte(nil), data...)
	d.admitStringRef(out, false)
	return out, nil
}

func (d *Decoder) decodeIndefiniteStringChunks(mt MajorType) ([]byte, error) {
	var buf []byte
	for {
		b, err := d.r.readByte()
		if err != nil {
			return nil, err
		}
		if b == breakByte {
			return buf, nil
		}
		chunkMT, ai := decodeInitialByte(b)
		if chunkMT != mt {
			return nil, d.valueErr("indefinite-length chunk has the wrong major type", ErrIndefiniteChunkType)
		}
		if ai == byte(AdditionalInfoIndefiniteLength) {
			return nil, d.valueErr("nested indefinite-length chunk", ErrNestedIndefiniteChunk)
		}
		length, _, err := readArgument(d.r, ai, d.opts.Mode)
		if err != nil {
			return nil, err
		}
		chunk, err := d.readStringBytes(length)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
}

func (d *Decoder) readStringBytes(length uint64) ([]byte, error) {
	if length <= maxStringChunk {
		return d.r.readExact(int(length))
	}
	out := make([]byte, 0, maxStringChunk)
	remaining := length
	for remaining > 0 {
		n := remaining
		if n > maxStringChunk {
			n = maxStringChunk
		}
		chunk, err := d.r.readExact(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		remaining -= n
	}
	return out, nil
}

func (d *Decoder) admitStringRef(data []byte, isText bool) {
	ns := d.stringRefs.active()
	if ns == nil {
		return
	}
	ns.admit(data, isText)
}

func decodeUTF8(data []byte, policy string) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	switch policy {
	case "ignore":
		return stripInvalidUTF8(data), nil
	case "replace":
		return strings.ToValidUTF8(string(data), "�"), nil
	default:
		return "", ErrInvalidUTF8
	}
}

func stripInvalidUTF8(data []byte) string {
	var b strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			data = data[1:]
			continue
		}
		b.WriteRune(r)
		data = data[size:]
	}
	return b.String()
}

// --- arrays ------------------------------------------------------------------

func (d *Decoder) decodeArray(ai byte) (any, error) {
	length, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	if d.immutableContext {
		items, err := d.decodeArrayItems(length, indefinite)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	}

	shareIdx := d.consumePendingShareIndex()
	if !indefinite && length <= containerPreallocLimit {
		// The backing array is known up front, so the registry slot can be
		// filled before the elements decode and a back-reference inside
		// them resolves to this very slice.
		items := make([]any, length)
		if shareIdx != nil {
			d.sharing.fill(*shareIdx, items)
		}
		for i := range items {
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	}

	// Indefinite or very long: grow incrementally. A self-reference inside
	// resolves to the empty slice registered up front, and the slot is
	// refilled with the final slice once all elements are decoded.
	items := make([]any, 0)
	if shareIdx != nil {
		d.sharing.fill(*shareIdx, items)
	}
	if indefinite {
		for {
			b, err := d.r.peekByte()
			if err != nil {
				return nil, err
			}
			if b == breakByte {
				d.r.readByte()
				break
			}
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	} else {
		for i := uint64(0); i < length; i++ {
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	}
	if shareIdx != nil {
		d.sharing.fill(*shareIdx, items)
	}
	return items, nil
}

// decodeArrayItems decodes array elements under the context already set
// by the caller (the immutable-context Tuple path).
func (d *Decoder) decodeArrayItems(length uint64, indefinite bool) ([]any, error) {
	if indefinite {
		items := []any{}
		for {
			b, err := d.r.peekByte()
			if err != nil {
				return nil, err
			}
			if b == breakByte {
				d.r.readByte()
				break
			}
			v, err := d.decodeValue()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}
	capHint := length
	if capHint > containerPreallocLimit {
		capHint = containerPreallocLimit
	}
	items := make([]any, 0, capHint)
	for i := uint64(0); i < length; i++ {
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// --- maps ----------------------------------------------------------------

func (d *Decoder) decodeMap(ai byte) (any, error) {
	length, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	if d.immutableContext {
		entries, err := d.decodeMapEntries(length, indefinite)
		if err != nil {
			return nil, err
		}
		return NewFrozenMap(entries), nil
	}

	shareIdx := d.consumePendingShareIndex()
	m := NewMap()
	if shareIdx != nil {
		d.sharing.fill(*shareIdx, m)
	}
	if err := d.decodeMapInto(m, length, indefinite); err != nil {
		return nil, err
	}

	var result any = m
	if d.opts.ObjectHook != nil {
		hooked, err := d.opts.ObjectHook(d, m)
		if err != nil {
			return nil, d.hookErr("object_hook", err)
		}
		result = hooked
		if shareIdx != nil {
			d.sharing.fill(*shareIdx, hooked)
		}
	}
	return result, nil
}

// decodeMapInto decodes entries for a mutable map. Keys always decode in
// the immutable context, since a key must be usable for lookup and may
// itself be a map or array; values decode in the ambient context.
func (d *Decoder) decodeMapInto(m *Map, length uint64, indefinite bool) error {
	addEntry := func() error {
		k, err := d.decodeInContext(true)
		if err != nil {
			return err
		}
		if d.opts.Mode.strict() {
			if _, exists := m.Get(k); exists {
				return d.valueErr("duplicate map key", ErrDuplicateMapKey)
			}
		}
		v, err := d.decodeValue()
		if err != nil {
			return err
		}
		m.Append(k, v)
		return nil
	}
	if indefinite {
		for {
			b, err := d.r.peekByte()
			if err != nil {
				return err
			}
			if b == breakByte {
				d.r.readByte()
				break
			}
			if err := addEntry(); err != nil {
				return err
			}
		}
		return nil
	}
	for i := uint64(0); i < length; i++ {
		if err := addEntry(); err != nil {
			return err
		}
	}
	return nil
}

// decodeMapEntries decodes entries for a FrozenMap: both keys and values
// decode under the already-immutable ambient context.
func (d *Decoder) decodeMapEntries(length uint64, indefinite bool) ([]MapEntry, error) {
	var entries []MapEntry
	addEntry := func() error {
		k, err := d.decodeValue()
		if err != nil {
			return err
		}
		if d.opts.Mode.strict() {
			for _, e := range entries {
				if valueEqual(e.Key, k) {
					return d.valueErr("duplicate map key", ErrDuplicateMapKey)
				}
			}
		}
		v, err := d.decodeValue()
		if err != nil {
			return err
		}
		entries = append(entries, MapEntry{Key: k, Value: v})
		return nil
	}
	if indefinite {
		for {
			b, err := d.r.peekByte()
			if err != nil {
				return nil, err
			}
			if b == breakByte {
				d.r.readByte()
				break
			}
			if err := addEntry(); err != nil {
				return nil, err
			}
		}
		return entries, nil
	}
	capHint := length
	if capHint > containerPreallocLimit {
		capHint = containerPreallocLimit
	}
	entries = make([]MapEntry, 0, capHint)
	for i := uint64(0); i < length; i++ {
		if err := addEntry(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// --- tags ----------------------------------------------------------------

func (d *Decoder) decodeTag(ai byte) (any, error) {
	tagNum, indefinite, err := readArgument(d.r, ai, d.opts.Mode)
	if err != nil {
		return nil, err
	}
	if indefinite {
		return nil, d.err("tag number cannot be indefinite-length", ErrInvalidMajorType)
	}

	switch tagNum {
	case TagMarkShareable:
		return d.decodeMarkShareable()
	case TagSharedRef:
		return d.decodeSharedRef()
	case TagStringRef:
		return d.decodeStringRefTag()
	case TagStringRefNS:
		return d.decodeStringRefNamespaceTag()
	case TagSet:
		return d.decodeSetTag()
	}

	payloadImmutable := d.immutableContext
	switch tagNum {
	case TagDecimalFraction, TagBigFloat, TagRational, TagComplex, TagIPv4, TagIPv6:
		payloadImmutable = true
	}

	handler, known := d.tagDecoders[tagNum]

	// For an unrecognized tag the share slot belongs to the CBORTag (or
	// the tag-hook result) rather than to a container inside its payload,
	// so the pending index is claimed here and filled once the final
	// value exists. Recognized tags drop the index before their payload
	// decodes, so their results are filled by the tag-28 wrapper on the
	// way out; self-described CBOR passes its payload through, so the
	// payload keeps the index.
	var shareIdx *int
	if !known {
		shareIdx = d.consumePendingShareIndex()
	} else if tagNum != TagSelfDescribedCbor {
		d.consumePendingShareIndex()
	}

	inner, err := d.decodeInContext(payloadImmutable)
	if err != nil {
		return nil, err
	}

	if known {
		return handler(d, inner)
	}
	tag := CBORTag{Tag: tagNum, Value: inner}
	var result any = tag
	if d.opts.TagHook != nil {
		hooked, err := d.opts.TagHook(d, tag)
		if err != nil {
			return nil, d.hookErr("tag_hook", err)
		}
		result = hooked
	}
	if shareIdx != nil {
		d.sharing.fill(*shareIdx, result)
	}
	return result, nil
}

// decodeMarkShareable implements tag 28: allocate a pending slot before
// decoding the inner value, so a cyclic back-reference inside it can
// resolve; fill the slot on the way out if the inner decode didn't
// already do so itself (containers fill early; scalars fill here).
func (d *Decoder) decodeMarkShareable() (any, error) {
	idx := d.sharing.allocatePending()
	prev := d.pendingShareIndex
	d.pendingShareIndex = &idx
	v, err := d.decodeValue()
	d.pendingShareIndex = prev
	if err != nil {
		return nil, err
	}
	if _, pending, ok := d.sharing.get(idx); ok && pending {
		d.sharing.fill(idx, v)
	}
	return v, nil
}

// decodeSharedRef implements tag 29.
func (d *Decoder) decodeSharedRef() (any, error) {
	inner, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	n, ok := toInt64(inner)
	if !ok || n < 0 {
		return nil, d.valueErr("shared reference index must be a nonnegative integer", nil)
	}
	value, pending, ok := d.sharing.get(int(n))
	if !ok {
		return nil, d.valueErr("shared reference index out of range", ErrMissingShareSlot)
	}
	if pending {
		return nil, d.valueErr("shared reference is not yet initialized", ErrPendingShareSlot)
	}
	return value, nil
}

// decodeStringRefTag implements tag 25.
func (d *Decoder) decodeStringRefTag() (any, error) {
	inner, err := d.decodeValue()
	if err != nil {
		return nil, err
	}
	n, ok := toInt64(inner)
	if !ok || n < 0 {
		return nil, d.valueErr("string reference index must be a nonnegative integer", nil)
	}
	ns := d.stringRefs.active()
	if ns == nil {
		return nil, d.valueErr("string reference used outside a namespace", ErrNoActiveNamespace)
	}
	data, isText, ok := ns.lookup(int(n))
	if !ok {
		return nil, d.valueErr("string reference index out of range", ErrMissingStringRef)
	}
	if isText {
		return string(data), nil
	}
	return append([]byte(nil), data...), nil
}

// decodeStringRefNamespaceTag implements tag 256.
func (d *Decoder) decodeStringRefNamespaceTag() (any, error) {
	d.stringRefs.open()
	v, err := d.decodeValue()
	d.stringRefs.close()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// decodeSetTag implements tag 258: its inner array always decodes in the
// immutable context, but whether the resulting set is mutable or frozen
// follows the ambient context the tag itself was read under.
func (d *Decoder) decodeSetTag() (any, error) {
	// A tag-28 wrapper around the set fills its slot with the set itself
	// on the way out, so no element may claim the pending index.
	d.consumePendingShareIndex()
	ambientImmutable := d.immutableContext
	inner, err := d.decodeInContext(true)
	if err != nil {
		return nil, err
	}
	items, ok := asItems(inner)
	if !ok {
		return nil, d.valueErr("tag 258 payload must be an array", nil)
	}
	if ambientImmutable {
		return NewFrozenSet(items), nil
	}
	s := NewSet()
	for _, it := range items {
		s.Add(it)
	}
	return s, nil
}
