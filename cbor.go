// Package cbor provides CBOR (Concise Binary Object Representation) encoding
// and decoding as defined in RFC 8949. This implementation is inspired by
// .NET's System.Formats.Cbor and by Python's cbor2.
package cbor

// MajorType represents the CBOR major type (3-bit value in the initial byte).
type MajorType byte

const (
	// MajorTypeUnsignedInteger represents unsigned integer (major type 0).
	MajorTypeUnsignedInteger MajorType = 0
	// MajorTypeNegativeInteger represents negative integer (major type 1).
	MajorTypeNegativeInteger MajorType = 1
	// MajorTypeByteString represents byte string (major type 2).
	MajorTypeByteString MajorType = 2
	// MajorTypeTextString represents UTF-8 text string (major type 3).
	MajorTypeTextString MajorType = 3
	// MajorTypeArray represents array of data items (major type 4).
	MajorTypeArray MajorType = 4
	// MajorTypeMap represents map of pairs of data items (major type 5).
	MajorTypeMap MajorType = 5
	// MajorTypeTag represents tagged data item (major type 6).
	MajorTypeTag MajorType = 6
	// MajorTypeSimpleOrFloat represents simple values and floats (major type 7).
	MajorTypeSimpleOrFloat MajorType = 7
)

// String returns the string representation of the major type.
func (mt MajorType) String() string {
	switch mt {
	case MajorTypeUnsignedInteger:
		return "UnsignedInteger"
	case MajorTypeNegativeInteger:
		return "NegativeInteger"
	case MajorTypeByteString:
		return "ByteString"
	case MajorTypeTextString:
		return "TextString"
	case MajorTypeArray:
		return "Array"
	case MajorTypeMap:
		return "Map"
	case MajorTypeTag:
		return "Tag"
	case MajorTypeSimpleOrFloat:
		return "SimpleOrFloat"
	default:
		return "Unknown"
	}
}

// AdditionalInfo represents the additional information in the initial byte.
type AdditionalInfo byte

const (
	// AdditionalInfoDirect means the value is encoded directly in the additional info (0-23).
	AdditionalInfoDirect AdditionalInfo = 0
	// AdditionalInfo8Bit means the following byte contains the value.
	AdditionalInfo8Bit AdditionalInfo = 24
	// AdditionalInfo16Bit means the following 2 bytes contain the value.
	AdditionalInfo16Bit AdditionalInfo = 25
	// AdditionalInfo32Bit means the following 4 bytes contain the value.
	AdditionalInfo32Bit AdditionalInfo = 26
	// AdditionalInfo64Bit means the following 8 bytes contain the value.
	AdditionalInfo64Bit AdditionalInfo = 27
	// AdditionalInfoIndefiniteLength means indefinite length (used for strings, arrays, maps).
	AdditionalInfoIndefiniteLength AdditionalInfo = 31
)

// simpleValue byte constants for the fixed major-7 entries (bool/null/undefined).
const (
	simpleValueFalse     byte = 20
	simpleValueTrue      byte = 21
	simpleValueNull      byte = 22
	simpleValueUndefined byte = 23
)

// Well-known CBOR semantic tag numbers handled by default.
const (
	TagDateTimeString    uint64 = 0
	TagUnixTime          uint64 = 1
	TagUnsignedBignum    uint64 = 2
	TagNegativeBignum    uint64 = 3
	TagDecimalFraction   uint64 = 4
	TagBigFloat          uint64 = 5
	TagStringRef         uint64 = 25
	TagMarkShareable     uint64 = 28
	TagSharedRef         uint64 = 29
	TagRational          uint64 = 30
	TagRegularExpression uint64 = 35
	TagMIMEMessage       uint64 = 36
	TagUUID              uint64 = 37
	TagIPv4              uint64 = 52
	TagIPv6              uint64 = 54
	TagDateDays          uint64 = 100
	TagStringRefNS       uint64 = 256
	TagSet               uint64 = 258
	TagLegacyIPOrMAC     uint64 = 260
	TagLegacyIPNetwork   uint64 = 261
	TagDateString        uint64 = 1004
	TagComplex           uint64 = 43000
	TagSelfDescribedCbor uint64 = 55799
)

// ConformanceMode selects how strictly the codec applies RFC 8949
// beyond basic well-formedness. Each mode implies the ones below it.
type ConformanceMode int

const (
	// ConformanceLax accepts any well-formed CBOR on decode and makes no
	// deterministic-ordering guarantees on encode.
	ConformanceLax ConformanceMode = iota
	// ConformanceStrict additionally rejects duplicate map keys on decode.
	ConformanceStrict
	// ConformanceCanonical makes encoding deterministic (RFC 8949 §4.2.1):
	// length-then-lex map key order, shortest round-tripping float form,
	// sorted set elements.
	ConformanceCanonical
	// ConformanceCtap2Canonical is canonical encoding with byte-wise (not
	// length-first) key ordering and a ban on indefinite-length items.
	ConformanceCtap2Canonical
)

// strict reports whether decode refuses duplicate map keys and
// non-minimal argument encodings.
func (m ConformanceMode) strict() bool { return m >= ConformanceStrict }

// canonical reports whether encoded output must be deterministic.
func (m ConformanceMode) canonical() bool { return m >= ConformanceCanonical }

// ctap2 reports whether CTAP2 key ordering and container rules apply.
func (m ConformanceMode) ctap2() bool { return m == ConformanceCtap2Canonical }

// breakByte terminates indefinite-length items.
const breakByte byte = 0xFF

// encodeInitialByte creates the initial byte from major type and additional info.
func encodeInitialByte(mt MajorType, ai byte) byte {
	return byte(mt)<<5 | (ai & 0x1F)
}

// decodeInitialByte extracts major type and additional info from initial byte.
func decodeInitialByte(b byte) (MajorType, byte) {
	return MajorType(b >> 5), b & 0x1F
}
