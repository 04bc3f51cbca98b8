package cbor

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Low-level wire primitives between the bufReader and the Decoder:
// argument-field decoding per RFC 8949 §3 and float reading.

// readArgument reads the argument/length field that follows an initial
// byte whose additional-info subfield is ai. indefinite is true only for
// ai == 31, which is valid only for major types 2-5; callers for other
// major types must reject it (major type 7 interprets 31 as the break
// marker and never calls readArgument for it). Under ConformanceStrict
// and above, arguments encoded wider than necessary are rejected.
func readArgument(r *bufReader, ai byte, mode ConformanceMode) (value uint64, indefinite bool, err error) {
	switch {
	case ai < 24:
		return uint64(ai), false, nil
	case ai == 24:
		b, err := r.readByte()
		if err != nil {
			return 0, false, err
		}
		if mode.strict() && b < 24 {
			return 0, false, newDecodeError(r.offset(), "non-minimal argument encoding", ErrNonMinimalEncoding)
		}
		return uint64(b), false, nil
	case ai == 25:
		buf, err := r.readExact(2)
		if err != nil {
			return 0, false, err
		}
		v := uint64(binary.BigEndian.Uint16(buf))
		if mode.strict() && v <= 0xFF {
			return 0, false, newDecodeError(r.offset(), "non-minimal argument encoding", ErrNonMinimalEncoding)
		}
		return v, false, nil
	case ai == 26:
		buf, err := r.readExact(4)
		if err != nil {
			return 0, false, err
		}
		v := uint64(binary.BigEndian.Uint32(buf))
		if mode.strict() && v <= 0xFFFF {
			return 0, false, newDecodeError(r.offset(), "non-minimal argument encoding", ErrNonMinimalEncoding)
		}
		return v, false, nil
	case ai == 27:
		buf, err := r.readExact(8)
		if err != nil {
			return 0, false, err
		}
		v := binary.BigEndian.Uint64(buf)
		if mode.strict() && v <= 0xFFFFFFFF {
			return 0, false, newDecodeError(r.offset(), "non-minimal argument encoding", ErrNonMinimalEncoding)
		}
		return v, false, nil
	case ai == 31:
		return 0, true, nil
	default:
		return 0, false, newDecodeError(r.offset(), "reserved additional-info value", ErrInvalidMajorType)
	}
}

// readFloat16 reads a 2-byte IEEE-754 binary16 float and widens it to
// float64.
func readFloat16(r *bufReader) (float64, error) {
	buf, err := r.readExact(2)
	if err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint16(buf)
	return float64(float16.Float16(bits).Float32()), nil
}

// readFloat32 reads a 4-byte IEEE-754 binary32 float and widens it to float64.
func readFloat32(r *bufReader) (float64, error) {
	buf, err := r.readExact(4)
	if err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint32(buf)
	return float64(math.Float32frombits(bits)), nil
}

// readFloat64 reads an 8-byte IEEE-754 binary64 float.
func readFloat64(r *bufReader) (float64, error) {
	buf, err := r.readExact(8)
	if err != nil {
		return 0, err
	}
	bits := binary.BigEndian.Uint64(buf)
	return math.Float64frombits(bits), nil
}
