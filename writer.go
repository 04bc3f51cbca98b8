package cbor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Low-level wire primitives between the Encoder and the bufWriter:
// initial-byte/length-header writing and float writing.

// writeLengthHeader writes the initial byte and any following length
// bytes for major type mt and the given length, always choosing the
// minimal width: values below 24 are inlined, otherwise the smallest of
// the 1/2/4/8-byte big-endian forms is used.
func writeLengthHeader(w *bufWriter, mt MajorType, length uint64) error {
	switch {
	case length < 24:
		return w.writeByte(encodeInitialByte(mt, byte(length)))
	case length <= math.MaxUint8:
		if err := w.writeByte(encodeInitialByte(mt, byte(AdditionalInfo8Bit))); err != nil {
			return err
		}
		return w.writeByte(byte(length))
	case length <= math.MaxUint16:
		if err := w.writeByte(encodeInitialByte(mt, byte(AdditionalInfo16Bit))); err != nil {
			return err
		}
		return w.write(binary.BigEndian.AppendUint16(nil, uint16(length)))
	case length <= math.MaxUint32:
		if err := w.writeByte(encodeInitialByte(mt, byte(AdditionalInfo32Bit))); err != nil {
			return err
		}
		return w.write(binary.BigEndian.AppendUint32(nil, uint32(length)))
	default:
		if err := w.writeByte(encodeInitialByte(mt, byte(AdditionalInfo64Bit))); err != nil {
			return err
		}
		return w.write(binary.BigEndian.AppendUint64(nil, length))
	}
}

// writeIndefiniteHeader writes the M<<5|31 initial byte opening an
// indefinite-length byte string, text string, array, or map.
func writeIndefiniteHeader(w *bufWriter, mt MajorType) error {
	return w.writeByte(encodeInitialByte(mt, byte(AdditionalInfoIndefiniteLength)))
}

// writeBreak writes the indefinite-length terminator.
func writeBreak(w *bufWriter) error {
	return w.writeByte(breakByte)
}

// writeFloat16 narrows f to IEEE-754 binary16 and writes it.
func writeFloat16(w *bufWriter, f float64) error {
	if err := w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, 25)); err != nil {
		return err
	}
	bits := uint16(float16.Fromfloat32(float32(f)))
	return w.write(binary.BigEndian.AppendUint16(nil, bits))
}

// writeFloat32 writes f narrowed to IEEE-754 binary32.
func writeFloat32(w *bufWriter, f float64) error {
	if err := w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, 26)); err != nil {
		return err
	}
	bits := math.Float32bits(float32(f))
	return w.write(binary.BigEndian.AppendUint32(nil, bits))
}

// writeFloat64 writes f as IEEE-754 binary64.
func writeFloat64(w *bufWriter, f float64) error {
	if err := w.writeByte(encodeInitialByte(MajorTypeSimpleOrFloat, 27)); err != nil {
		return err
	}
	bits := math.Float64bits(f)
	return w.write(binary.BigEndian.AppendUint64(nil, bits))
}

// float16RoundTrips reports whether f has an exact IEEE-754 binary16
// representation.
func float16RoundTrips(f float64) bool {
	if math.IsNaN(f) {
		return true // NaN always gets the canonical 3-byte form
	}
	if !float32RoundTrips(f) {
		return false
	}
	h := float16.Fromfloat32(float32(f))
	return float64(h.Float32()) == f
}

// float32RoundTrips reports whether f has an exact IEEE-754 binary32
// representation.
func float32RoundTrips(f float64) bool {
	return float64(float32(f)) == f
}
