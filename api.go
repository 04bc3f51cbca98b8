package cbor

import (
	"io"
	"reflect"
	"time"
)

// Public entry points: Load/Loads decode one item, Dump/Dumps encode one
// item, and NewDecoder/NewEncoder expose the underlying stateful codecs
// for callers who want to reuse a configured instance. Options follow
// the functional-option pattern throughout.

// ObjectHook is invoked after every map is decoded; its return value
// replaces the map in the decoded output.
type ObjectHook func(dec *Decoder, m *Map) (any, error)

// TagHook is invoked for any tag number without a registered decoder;
// its return value replaces the CBORTag in the decoded output.
type TagHook func(dec *Decoder, tag CBORTag) (any, error)

// DefaultEncoder is the last-resort encode callback: it returns
// (handled, err) so the caller can distinguish "I encoded something"
// from "I have nothing for this type."
type DefaultEncoder func(enc *Encoder, v any) (handled bool, err error)

// DecOptions configures a Decoder.
type DecOptions struct {
	TagHook     TagHook
	ObjectHook  ObjectHook
	StrErrors   string          // "strict" (default), "ignore", "replace"
	MaxDepth    int             // 0 means defaultMaxDepth
	Mode        ConformanceMode // ConformanceStrict and above reject duplicate map keys
	TagDecoders tagDecoderTable
}

// DecOption configures a DecOptions value.
type DecOption func(*DecOptions)

// WithTagHook sets the tag-hook callback.
func WithTagHook(hook TagHook) DecOption {
	return func(o *DecOptions) { o.TagHook = hook }
}

// WithObjectHook sets the object-hook callback.
func WithObjectHook(hook ObjectHook) DecOption {
	return func(o *DecOptions) { o.ObjectHook = hook }
}

// WithStrErrors sets the UTF-8 error policy ("strict", "ignore", "replace").
func WithStrErrors(policy string) DecOption {
	return func(o *DecOptions) { o.StrErrors = policy }
}

// WithMaxDepth sets the recursion ceiling.
func WithMaxDepth(depth int) DecOption {
	return func(o *DecOptions) { o.MaxDepth = depth }
}

// WithDecoderConformanceMode sets the conformance mode for decoding.
// ConformanceStrict and above reject duplicate map keys.
func WithDecoderConformanceMode(mode ConformanceMode) DecOption {
	return func(o *DecOptions) { o.Mode = mode }
}

// WithTagDecoder registers or overrides the decoder for a single tag
// number, layering on top of the package defaults.
func WithTagDecoder(tagNum uint64, fn TagDecoder) DecOption {
	return func(o *DecOptions) {
		if o.TagDecoders == nil {
			o.TagDecoders = defaultTagDecoders()
		} else {
			o.TagDecoders = o.TagDecoders.clone()
		}
		o.TagDecoders[tagNum] = fn
	}
}

func newDecOptions(opts ...DecOption) DecOptions {
	o := DecOptions{StrErrors: "strict"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EncOptions configures an Encoder.
type EncOptions struct {
	DatetimeAsTimestamp  bool
	Timezone             *time.Location
	ValueSharing         bool
	Mode                 ConformanceMode
	DateAsDatetime       bool
	StringReferencing    bool
	IndefiniteContainers bool
	Default              DefaultEncoder
	TypeEncoders         typeEncoderTable
}

// EncOption configures an EncOptions value.
type EncOption func(*EncOptions)

// WithDatetimeAsTimestamp selects tag-1 (epoch number) encoding for
// time.Time instead of the default tag-0 ISO text.
func WithDatetimeAsTimestamp(enabled bool) EncOption {
	return func(o *EncOptions) { o.DatetimeAsTimestamp = enabled }
}

// WithTimezone sets the timezone that datetimes are rendered in when
// encoded as tag-0 ISO text.
func WithTimezone(loc *time.Location) EncOption {
	return func(o *EncOptions) { o.Timezone = loc }
}

// WithValueSharing enables tag 28/29 value-sharing emission, which also
// makes cyclic containers representable instead of a cyclic-structure error.
func WithValueSharing(enabled bool) EncOption {
	return func(o *EncOptions) { o.ValueSharing = enabled }
}

// WithEncoderConformanceMode sets the conformance mode for encoding.
// ConformanceCanonical and above produce deterministic output;
// ConformanceCtap2Canonical additionally forbids indefinite-length
// containers.
func WithEncoderConformanceMode(mode ConformanceMode) EncOption {
	return func(o *EncOptions) {
		o.Mode = mode
		if mode.ctap2() {
			o.IndefiniteContainers = false
		}
	}
}

// WithCanonical is shorthand for selecting ConformanceCanonical
// (length-then-bytes map key sort, shortest round-tripping float form,
// sorted set elements); disabling it falls back to ConformanceLax.
func WithCanonical(enabled bool) EncOption {
	return func(o *EncOptions) {
		if enabled {
			if !o.Mode.canonical() {
				o.Mode = ConformanceCanonical
			}
		} else {
			o.Mode = ConformanceLax
		}
	}
}

// WithCTAP2 is shorthand for selecting ConformanceCtap2Canonical (pure
// byte-wise key order, no indefinite-length containers); disabling it
// falls back to ConformanceCanonical.
func WithCTAP2(enabled bool) EncOption {
	return func(o *EncOptions) {
		if enabled {
			o.Mode = ConformanceCtap2Canonical
			o.IndefiniteContainers = false
		} else if o.Mode.ctap2() {
			o.Mode = ConformanceCanonical
		}
	}
}

// WithDateAsDatetime encodes Date values via tag 0/1 (as midnight
// datetimes) instead of tag 100/1004.
func WithDateAsDatetime(enabled bool) EncOption {
	return func(o *EncOptions) { o.DateAsDatetime = enabled }
}

// WithStringReferencing enables tag-25/256 string reference emission.
func WithStringReferencing(enabled bool) EncOption {
	return func(o *EncOptions) { o.StringReferencing = enabled }
}

// WithIndefiniteContainers emits indefinite-length arrays and maps with
// a break terminator instead of a fixed-length header.
func WithIndefiniteContainers(enabled bool) EncOption {
	return func(o *EncOptions) { o.IndefiniteContainers = enabled }
}

// WithDefaultEncoder sets the last-resort encode callback invoked when
// no built-in or registered-type encoder matches.
func WithDefaultEncoder(fn DefaultEncoder) EncOption {
	return func(o *EncOptions) { o.Default = fn }
}

// WithTypeEncoder registers or overrides the encoder for a value's exact
// runtime type, consulted ahead of the built-in kind dispatch.
func WithTypeEncoder(sample any, fn TypeEncoder) EncOption {
	return func(o *EncOptions) {
		if o.TypeEncoders == nil {
			o.TypeEncoders = typeEncoderTable{}
		} else {
			o.TypeEncoders = o.TypeEncoders.clone()
		}
		o.TypeEncoders[reflect.TypeOf(sample)] = fn
	}
}

func newEncOptions(opts ...EncOption) EncOptions {
	o := EncOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Mode.ctap2() {
		o.IndefiniteContainers = false
	}
	return o
}

// NewDecoder constructs a Decoder reading from r. A Decoder is not safe
// for concurrent use.
func NewDecoder(r io.Reader, opts ...DecOption) *Decoder {
	o := newDecOptions(opts...)
	tagDecoders := o.TagDecoders
	if tagDecoders == nil {
		tagDecoders = defaultTagDecoders()
	}
	return &Decoder{r: newBufReader(r), opts: o, tagDecoders: tagDecoders}
}

// newDecoderBytes constructs a Decoder directly over an in-memory
// buffer, the fast path used by Loads.
func newDecoderBytes(b []byte, opts ...DecOption) *Decoder {
	o := newDecOptions(opts...)
	tagDecoders := o.TagDecoders
	if tagDecoders == nil {
		tagDecoders = defaultTagDecoders()
	}
	return &Decoder{r: newBufReaderBytes(b), opts: o, tagDecoders: tagDecoders}
}

// NewEncoder constructs an Encoder writing to w. An Encoder is not safe
// for concurrent use.
func NewEncoder(w io.Writer, opts ...EncOption) *Encoder {
	o := newEncOptions(opts...)
	overrides := o.TypeEncoders
	if overrides == nil {
		overrides = typeEncoderTable{}
	}
	return &Encoder{
		w:                newBufWriter(w),
		opts:             o,
		overrideEncoders: overrides,
		domainEncoders:   defaultTypeEncoders(),
	}
}

// newEncoderBytes constructs a sink-less Encoder that accumulates bytes
// and returns them on completion, the fast path used by Dumps.
func newEncoderBytes(opts ...EncOption) *Encoder {
	o := newEncOptions(opts...)
	overrides := o.TypeEncoders
	if overrides == nil {
		overrides = typeEncoderTable{}
	}
	return &Encoder{
		w:                newBufWriterBytes(),
		opts:             o,
		overrideEncoders: overrides,
		domainEncoders:   defaultTypeEncoders(),
	}
}

// Load constructs a Decoder over r and decodes exactly one CBOR item.
func Load(r io.Reader, opts ...DecOption) (any, error) {
	return NewDecoder(r, opts...).Decode()
}

// Loads decodes exactly one CBOR item from an in-memory buffer.
func Loads(data []byte, opts ...DecOption) (any, error) {
	return newDecoderBytes(data, opts...).Decode()
}

// Dump encodes v to w and flushes.
func Dump(v any, w io.Writer, opts ...EncOption) error {
	return NewEncoder(w, opts...).Encode(v)
}

// Dumps encodes v and returns the accumulated bytes.
func Dumps(v any, opts ...EncOption) ([]byte, error) {
	enc := newEncoderBytes(opts...)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return enc.w.bytes(), nil
}
