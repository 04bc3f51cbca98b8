package cbor

import "reflect"

// Domain-type bridge: semantic tags decode through a tag-number-keyed
// callback table, and domain values encode through a runtime-type-keyed
// callback table. Both tables are populated with defaults (tags.go) and
// can be extended or overridden per codec instance.

// TagDecoder constructs a domain value from a tag's already-decoded
// inner payload. dec gives access to the active Decoder instance in case
// a handler needs to recurse or consult decoder-wide policy.
type TagDecoder func(dec *Decoder, inner any) (any, error)

// TypeEncoder emits the CBOR encoding of a value whose runtime type
// matched a registered entry, ahead of the built-in kind dispatch.
type TypeEncoder func(enc *Encoder, v any) error

// tagDecoderTable is a tag-number-keyed lookup, copied per Decoder so
// callers can add or override entries without mutating the package-level
// defaults.
type tagDecoderTable map[uint64]TagDecoder

func (t tagDecoderTable) clone() tagDecoderTable {
	out := make(tagDecoderTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// typeEncoderTable is a runtime-type-keyed lookup, copied per Encoder
// the same way.
type typeEncoderTable map[reflect.Type]TypeEncoder

func (t typeEncoderTable) clone() typeEncoderTable {
	out := make(typeEncoderTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// defaultTagDecoders returns the standard tag table. Tags 25/28/29/256/258
// are handled directly inside the decoder since they need access to the
// registries, not merely the decoded inner value, so they are absent here.
func defaultTagDecoders() tagDecoderTable {
	return tagDecoderTable{
		TagDateTimeString:    decodeDateTimeString,
		TagUnixTime:          decodeUnixTime,
		TagUnsignedBignum:    decodeUnsignedBignum,
		TagNegativeBignum:    decodeNegativeBignum,
		TagDecimalFraction:   decodeDecimalFraction,
		TagBigFloat:          decodeBigFloat,
		TagRational:          decodeRational,
		TagRegularExpression: decodeRegularExpression,
		TagMIMEMessage:       decodeMIMEMessage,
		TagUUID:              decodeUUID,
		TagIPv4:              decodeIPv4,
		TagIPv6:              decodeIPv6,
		TagDateDays:          decodeDateDays,
		TagLegacyIPNetwork:   decodeLegacyIPNetwork,
		TagDateString:        decodeDateString,
		TagComplex:           decodeComplex,
		TagSelfDescribedCbor: decodeSelfDescribed,
		TagLegacyIPOrMAC:     decodeLegacyIPOrMAC,
	}
}

// defaultTypeEncoders returns the standard runtime-type table consulted
// after the built-in kind switch.
func defaultTypeEncoders() typeEncoderTable {
	out := typeEncoderTable{}
	registerDomainEncoders(out)
	return out
}
