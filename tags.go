package cbor

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"net/mail"
	"net/netip"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default domain-type factories: the decode handlers registered in
// bridge.go's defaultTagDecoders, and the encode handlers registered
// below for defaultTypeEncoders.

// Date represents a calendar day (tags 100/1004) with no time-of-day or
// zone component, distinct from the full time.Time datetime of tags 0/1
// so the encoder can tell which tag family a given value belongs to.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func dateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IPInterface represents the [address, prefix-length] shape of tags
// 52/54: an address paired with a prefix length, distinct from a network
// (where the host bits are implicitly zeroed).
type IPInterface struct {
	Addr      netip.Addr
	PrefixLen int
}

// --- decode-side conversions -------------------------------------------------

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	case *big.Int:
		if n.IsInt64() {
			return n.Int64(), true
		}
	}
	return 0, false
}

func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case *big.Int:
		return n, true
	}
	return nil, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *big.Int:
		f := new(big.Float).SetInt(n)
		out, _ := f.Float64()
		return out, true
	}
	return 0, false
}

// asPair unwraps a decoded 2-element array (Tuple from the immutable
// decode context, or []any as a defensive fallback).
func asPair(v any) (a, b any, ok bool) {
	switch t := v.(type) {
	case Tuple:
		if len(t) == 2 {
			return t[0], t[1], true
		}
	case []any:
		if len(t) == 2 {
			return t[0], t[1], true
		}
	}
	return nil, nil, false
}

func asItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case Tuple:
		return []any(t), true
	case []any:
		return t, true
	}
	return nil, false
}

// --- tag 0/1/100/1004: datetime & date --------------------------------------

func decodeDateTimeString(dec *Decoder, inner any) (any, error) {
	s, ok := inner.(string)
	if !ok {
		return nil, dec.valueErr("tag 0 payload must be a text string", nil)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, dec.valueErr("malformed ISO-8601 datetime", err)
	}
	return t, nil
}

// minEpochSeconds and maxEpochSeconds bound tag-1 timestamps to values
// that still format as a four-digit-year ISO-8601 datetime.
const (
	minEpochSeconds = -62167219200 // 0000-01-01T00:00:00Z
	maxEpochSeconds = 253402300799 // 9999-12-31T23:59:59Z
)

func decodeUnixTime(dec *Decoder, inner any) (any, error) {
	if f, ok := inner.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < minEpochSeconds || f > maxEpochSeconds {
			return nil, dec.valueErr("tag 1 timestamp out of range", nil)
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}
	if n, ok := toInt64(inner); ok {
		if n < minEpochSeconds || n > maxEpochSeconds {
			return nil, dec.valueErr("tag 1 timestamp out of range", nil)
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return nil, dec.valueErr("tag 1 payload must be a number", nil)
}

// Epoch-day bounds for years 1 through 9999.
const (
	minEpochDays = -719162
	maxEpochDays = 2932896
)

func decodeDateDays(dec *Decoder, inner any) (any, error) {
	n, ok := toInt64(inner)
	if !ok {
		return nil, dec.valueErr("tag 100 payload must be an integer", nil)
	}
	if n < minEpochDays || n > maxEpochDays {
		return nil, dec.valueErr("tag 100 day count out of range", nil)
	}
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	return dateFromTime(epoch.AddDate(0, 0, int(n))), nil
}

func decodeDateString(dec *Decoder, inner any) (any, error) {
	s, ok := inner.(string)
	if !ok {
		return nil, dec.valueErr("tag 1004 payload must be a text string", nil)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, dec.valueErr("malformed ISO-8601 date", err)
	}
	return dateFromTime(t), nil
}

// --- tag 2/3: bignums --------------------------------------------------------

func decodeUnsignedBignum(dec *Decoder, inner any) (any, error) {
	b, ok := inner.([]byte)
	if !ok {
		return nil, dec.valueErr("tag 2 payload must be a byte string", nil)
	}
	return new(big.Int).SetBytes(b), nil
}

func decodeNegativeBignum(dec *Decoder, inner any) (any, error) {
	b, ok := inner.([]byte)
	if !ok {
		return nil, dec.valueErr("tag 3 payload must be a byte string", nil)
	}
	n := new(big.Int).SetBytes(b)
	n.Add(n, big.NewInt(1))
	return n.Neg(n), nil
}

// --- tag 4/5/30: decimal fraction, big-float, rational ----------------------

func decodeDecimalFraction(dec *Decoder, inner any) (any, error) {
	expVal, mantVal, ok := asPair(inner)
	if !ok {
		return nil, dec.valueErr("tag 4 payload must be [exponent, mantissa]", nil)
	}
	exp, ok := toInt64(expVal)
	if !ok {
		return nil, dec.valueErr("tag 4 exponent must be an integer", nil)
	}
	if exp < math.MinInt32 || exp > math.MaxInt32 {
		return nil, dec.valueErr("tag 4 exponent out of range", nil)
	}
	mant, ok := toBigInt(mantVal)
	if !ok {
		return nil, dec.valueErr("tag 4 mantissa must be an integer", nil)
	}
	return decimal.NewFromBigInt(mant, int32(exp)), nil
}

// bigFloatExpLimit keeps tag-5 exponents inside big.Float's own exponent
// range.
const bigFloatExpLimit = 1 << 30

func decodeBigFloat(dec *Decoder, inner any) (any, error) {
	expVal, mantVal, ok := asPair(inner)
	if !ok {
		return nil, dec.valueErr("tag 5 payload must be [exponent, mantissa]", nil)
	}
	exp, ok := toInt64(expVal)
	if !ok {
		return nil, dec.valueErr("tag 5 exponent must be an integer", nil)
	}
	if exp < -bigFloatExpLimit || exp > bigFloatExpLimit {
		return nil, dec.valueErr("tag 5 exponent out of range", nil)
	}
	mant, ok := toBigInt(mantVal)
	if !ok {
		return nil, dec.valueErr("tag 5 mantissa must be an integer", nil)
	}
	f := new(big.Float).SetInt(mant)
	return f.SetMantExp(f, int(exp)), nil
}

func decodeRational(dec *Decoder, inner any) (any, error) {
	numVal, denVal, ok := asPair(inner)
	if !ok {
		return nil, dec.valueErr("tag 30 payload must be [numerator, denominator]", nil)
	}
	num, ok := toBigInt(numVal)
	if !ok {
		return nil, dec.valueErr("tag 30 numerator must be an integer", nil)
	}
	den, ok := toBigInt(denVal)
	if !ok {
		return nil, dec.valueErr("tag 30 denominator must be an integer", nil)
	}
	if den.Sign() == 0 {
		return nil, dec.valueErr("tag 30 denominator must not be zero", nil)
	}
	return new(big.Rat).SetFrac(num, den), nil
}

// --- tag 35/36: regex, MIME --------------------------------------------------

func decodeRegularExpression(dec *Decoder, inner any) (any, error) {
	s, ok := inner.(string)
	if !ok {
		return nil, dec.valueErr("tag 35 payload must be a text string", nil)
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, dec.valueErr("malformed regular expression", err)
	}
	return re, nil
}

func decodeMIMEMessage(dec *Decoder, inner any) (any, error) {
	s, ok := inner.(string)
	if !ok {
		return nil, dec.valueErr("tag 36 payload must be a text string", nil)
	}
	msg, err := mail.ReadMessage(strings.NewReader(s))
	if err != nil {
		return nil, dec.valueErr("malformed MIME message", err)
	}
	return msg, nil
}

// --- tag 37: UUID ------------------------------------------------------------

func decodeUUID(dec *Decoder, inner any) (any, error) {
	b, ok := inner.([]byte)
	if !ok || len(b) != 16 {
		return nil, dec.valueErr("tag 37 payload must be a 16-byte byte string", nil)
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return nil, dec.valueErr("malformed UUID", err)
	}
	return id, nil
}

// --- tag 52/54: IP address/network/interface --------------------------------

func decodeIPTag(dec *Decoder, inner any, tagNum uint64) (any, error) {
	if b, ok := inner.([]byte); ok {
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d address has invalid length", tagNum), nil)
		}
		return addr, nil
	}
	items, ok := asItems(inner)
	if !ok || (len(items) != 2 && len(items) != 3) {
		return nil, dec.valueErr(fmt.Sprintf("tag %d payload must be a byte string or a 2- or 3-element array", tagNum), nil)
	}
	zone := ""
	if len(items) == 3 {
		z, ok := items[2].(string)
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d zone id must be a text string", tagNum), nil)
		}
		zone = z
	}
	if n, ok := toInt64(items[0]); ok {
		// [prefix-length, address] -> network
		b, ok := items[1].([]byte)
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d network address must be a byte string", tagNum), nil)
		}
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d network address has invalid length", tagNum), nil)
		}
		if zone != "" {
			// Prefixes cannot carry zones; surface the shape error rather
			// than silently dropping the zone.
			return nil, dec.valueErr(fmt.Sprintf("tag %d network cannot have a zone id", tagNum), nil)
		}
		p := netip.PrefixFrom(addr, int(n))
		if !p.IsValid() {
			return nil, dec.valueErr(fmt.Sprintf("tag %d prefix length out of range", tagNum), nil)
		}
		return p.Masked(), nil
	}
	if b, ok := items[0].([]byte); ok {
		// [address, prefix-length] -> interface
		n, ok := toInt64(items[1])
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d interface prefix length must be an integer", tagNum), nil)
		}
		addr, ok := netip.AddrFromSlice(b)
		if !ok {
			return nil, dec.valueErr(fmt.Sprintf("tag %d interface address has invalid length", tagNum), nil)
		}
		if n < 0 || int(n) > addr.BitLen() {
			return nil, dec.valueErr(fmt.Sprintf("tag %d prefix length out of range", tagNum), nil)
		}
		if zone != "" {
			addr = addr.WithZone(zone)
		}
		return IPInterface{Addr: addr, PrefixLen: int(n)}, nil
	}
	return nil, dec.valueErr(fmt.Sprintf("tag %d payload has an unrecognized shape", tagNum), nil)
}

func decodeIPv4(dec *Decoder, inner any) (any, error) { return decodeIPTag(dec, inner, TagIPv4) }
func decodeIPv6(dec *Decoder, inner any) (any, error) { return decodeIPTag(dec, inner, TagIPv6) }

// --- tag 260/261: legacy IP/MAC, legacy IP network --------------------------

func decodeLegacyIPOrMAC(dec *Decoder, inner any) (any, error) {
	b, ok := inner.([]byte)
	if !ok {
		return nil, dec.valueErr("tag 260 payload must be a byte string", nil)
	}
	switch len(b) {
	case 4, 16:
		addr, _ := netip.AddrFromSlice(b)
		return addr, nil
	case 6:
		// MAC addresses stay unresolved; callers that care register their
		// own decoder for tag 260.
		return CBORTag{Tag: TagLegacyIPOrMAC, Value: inner}, nil
	default:
		return nil, dec.valueErr("tag 260 payload has an unrecognized length", nil)
	}
}

func decodeLegacyIPNetwork(dec *Decoder, inner any) (any, error) {
	var entries []MapEntry
	switch m := inner.(type) {
	case *Map:
		entries = m.Entries()
	case *FrozenMap:
		entries = m.Entries()
	default:
		return nil, dec.valueErr("tag 261 payload must be a single-entry map", nil)
	}
	if len(entries) != 1 {
		return nil, dec.valueErr("tag 261 payload must be a single-entry map", nil)
	}
	b, ok := entries[0].Key.([]byte)
	if !ok {
		return nil, dec.valueErr("tag 261 network address must be a byte string", nil)
	}
	n, ok := toInt64(entries[0].Value)
	if !ok {
		return nil, dec.valueErr("tag 261 prefix length must be an integer", nil)
	}
	addr, ok := netip.AddrFromSlice(b)
	if !ok {
		return nil, dec.valueErr("tag 261 network address has invalid length", nil)
	}
	p := netip.PrefixFrom(addr, int(n))
	if !p.IsValid() {
		return nil, dec.valueErr("tag 261 prefix length out of range", nil)
	}
	return p.Masked(), nil
}

// --- tag 43000: complex ------------------------------------------------------

func decodeComplex(dec *Decoder, inner any) (any, error) {
	reVal, imVal, ok := asPair(inner)
	if !ok {
		return nil, dec.valueErr("tag 43000 payload must be [real, imag]", nil)
	}
	re, ok := toFloat64(reVal)
	if !ok {
		return nil, dec.valueErr("tag 43000 real part must be a number", nil)
	}
	im, ok := toFloat64(imVal)
	if !ok {
		return nil, dec.valueErr("tag 43000 imaginary part must be a number", nil)
	}
	return complex(re, im), nil
}

// --- tag 55799: self-describe ------------------------------------------------

func decodeSelfDescribed(dec *Decoder, inner any) (any, error) {
	return inner, nil
}

// --- encode side --------------------------------------------------------------

func registerDomainEncoders(out typeEncoderTable) {
	out[reflect.TypeOf(time.Time{})] = encodeTimeValue
	out[reflect.TypeOf(Date{})] = encodeDateValue
	out[reflect.TypeOf(&big.Int{})] = encodeBigIntValue
	out[reflect.TypeOf(decimal.Decimal{})] = encodeDecimalValue
	out[reflect.TypeOf(&big.Float{})] = encodeBigFloatValue
	out[reflect.TypeOf(&big.Rat{})] = encodeRationalValue
	out[reflect.TypeOf(&regexp.Regexp{})] = encodeRegexpValue
	out[reflect.TypeOf(&mail.Message{})] = encodeMIMEValue
	out[reflect.TypeOf(uuid.UUID{})] = encodeUUIDValue
	out[reflect.TypeOf(netip.Addr{})] = encodeIPAddrValue
	out[reflect.TypeOf(netip.Prefix{})] = encodeIPPrefixValue
	out[reflect.TypeOf(IPInterface{})] = encodeIPInterfaceValue
	out[reflect.TypeOf(complex128(0))] = encodeComplexValue
}

func encodeTimeValue(enc *Encoder, v any) error {
	t := v.(time.Time)
	if enc.opts.Timezone != nil {
		t = t.In(enc.opts.Timezone)
	}
	if enc.opts.DatetimeAsTimestamp {
		if err := enc.writeTag(TagUnixTime); err != nil {
			return err
		}
		sec := t.Unix()
		nsec := t.Nanosecond()
		if nsec == 0 {
			return enc.encode(sec)
		}
		return enc.encode(float64(sec) + float64(nsec)/1e9)
	}
	if y := t.Year(); y < 0 || y > 9999 {
		return newEncodeValueError("datetime year outside the ISO-8601 text range", nil)
	}
	if err := enc.writeTag(TagDateTimeString); err != nil {
		return err
	}
	return enc.encode(t.Format(time.RFC3339Nano))
}

func encodeDateValue(enc *Encoder, v any) error {
	d := v.(Date)
	if enc.opts.DateAsDatetime {
		return encodeTimeValue(enc, d.toTime())
	}
	if enc.opts.DatetimeAsTimestamp {
		if err := enc.writeTag(TagDateDays); err != nil {
			return err
		}
		// Midnight UTC is always a whole number of days from the epoch.
		return enc.encode(d.toTime().Unix() / 86400)
	}
	if y := d.Year; y < 0 || y > 9999 {
		return newEncodeValueError("date year outside the ISO-8601 text range", nil)
	}
	if err := enc.writeTag(TagDateString); err != nil {
		return err
	}
	return enc.encode(d.toTime().Format("2006-01-02"))
}

func encodeBigIntValue(enc *Encoder, v any) error {
	n := v.(*big.Int)
	if n.Sign() >= 0 {
		if n.IsUint64() {
			return enc.encodeUnsignedNative(n.Uint64())
		}
		if err := enc.writeTag(TagUnsignedBignum); err != nil {
			return err
		}
		return enc.encode(n.Bytes())
	}
	mag := new(big.Int).Neg(n)
	mag.Sub(mag, big.NewInt(1))
	if mag.IsUint64() {
		return writeLengthHeader(enc.w, MajorTypeNegativeInteger, mag.Uint64())
	}
	if err := enc.writeTag(TagNegativeBignum); err != nil {
		return err
	}
	return enc.encode(mag.Bytes())
}

func encodeDecimalValue(enc *Encoder, v any) error {
	d := v.(decimal.Decimal)
	if err := enc.writeTag(TagDecimalFraction); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		return enc.encode(Tuple{int64(d.Exponent()), d.Coefficient()})
	})
}

func encodeBigFloatValue(enc *Encoder, v any) error {
	f := v.(*big.Float)
	if f.IsInf() {
		return newEncodeValueError("cannot encode an infinite big float", nil)
	}
	mant, exp := dyadicMantExp(f)
	if err := enc.writeTag(TagBigFloat); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		return enc.encode(Tuple{int64(exp), mant})
	})
}

// dyadicMantExp decomposes a finite big.Float, which is always a dyadic
// rational internally, into an exact (mantissa, exponent) pair such
// that f == mantissa * 2^exponent, with the mantissa odd (or zero).
func dyadicMantExp(f *big.Float) (*big.Int, int) {
	r := new(big.Rat)
	r, _ = f.Rat(r)
	num := new(big.Int).Set(r.Num())
	den := new(big.Int).Set(r.Denom())
	exp := 0
	one := big.NewInt(1)
	two := big.NewInt(2)
	for den.Cmp(one) > 0 {
		den.Quo(den, two)
		exp--
	}
	for num.Bit(0) == 0 && num.Sign() != 0 {
		num.Rsh(num, 1)
		exp++
	}
	return num, exp
}

func encodeRationalValue(enc *Encoder, v any) error {
	r := v.(*big.Rat)
	if err := enc.writeTag(TagRational); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		return enc.encode(Tuple{r.Num(), r.Denom()})
	})
}

func encodeRegexpValue(enc *Encoder, v any) error {
	re := v.(*regexp.Regexp)
	if err := enc.writeTag(TagRegularExpression); err != nil {
		return err
	}
	return enc.encode(re.String())
}

func encodeMIMEValue(enc *Encoder, v any) error {
	msg := v.(*mail.Message)
	if err := enc.writeTag(TagMIMEMessage); err != nil {
		return err
	}
	// Header iteration must be ordered so the same message always yields
	// the same bytes.
	keys := make([]string, 0, len(msg.Header))
	for key := range msg.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		for _, val := range msg.Header[key] {
			fmt.Fprintf(&b, "%s: %s\r\n", key, val)
		}
	}
	b.WriteString("\r\n")
	if msg.Body != nil {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return newEncodeValueError("unreadable MIME message body", err)
		}
		b.Write(body)
	}
	return enc.encode(b.String())
}

func encodeUUIDValue(enc *Encoder, v any) error {
	id := v.(uuid.UUID)
	if err := enc.writeTag(TagUUID); err != nil {
		return err
	}
	return enc.encode(append([]byte(nil), id[:]...))
}

func encodeIPAddrValue(enc *Encoder, v any) error {
	addr := v.(netip.Addr)
	tag := TagIPv4
	if addr.Is6() && !addr.Is4In6() {
		tag = TagIPv6
	}
	if err := enc.writeTag(tag); err != nil {
		return err
	}
	return enc.encode(addr.AsSlice())
}

func encodeIPPrefixValue(enc *Encoder, v any) error {
	p := v.(netip.Prefix)
	tag := TagIPv4
	if p.Addr().Is6() && !p.Addr().Is4In6() {
		tag = TagIPv6
	}
	if err := enc.writeTag(tag); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		return enc.encode(Tuple{int64(p.Bits()), p.Addr().AsSlice()})
	})
}

func encodeIPInterfaceValue(enc *Encoder, v any) error {
	i := v.(IPInterface)
	tag := TagIPv4
	if i.Addr.Is6() && !i.Addr.Is4In6() {
		tag = TagIPv6
	}
	if err := enc.writeTag(tag); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		if zone := i.Addr.Zone(); zone != "" {
			return enc.encode(Tuple{i.Addr.AsSlice(), int64(i.PrefixLen), zone})
		}
		return enc.encode(Tuple{i.Addr.AsSlice(), int64(i.PrefixLen)})
	})
}

func encodeComplexValue(enc *Encoder, v any) error {
	c := v.(complex128)
	if err := enc.writeTag(TagComplex); err != nil {
		return err
	}
	return enc.withDisabledValueSharing(func() error {
		return enc.encode(Tuple{real(c), imag(c)})
	})
}
