package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Data is a raw byte payload attached to a vertex. Integers travel as
// 8-byte big-endian two's complement, floats as 8-byte big-endian IEEE
// 754, booleans as a single 01 or 00 byte.
type Data []byte

// ErrDataFormat reports a malformed textual literal or a payload of
// the wrong length for the requested decoding.
var ErrDataFormat = errors.New("bad data encoding")

// IntData encodes an integer payload.
func IntData(n int64) Data {
	d := make(Data, 8)
	binary.BigEndian.PutUint64(d, uint64(n))
	return d
}

// FloatData encodes a float payload.
func FloatData(f float64) Data {
	d := make(Data, 8)
	binary.BigEndian.PutUint64(d, math.Float64bits(f))
	return d
}

// BoolData encodes a boolean payload.
func BoolData(b bool) Data {
	if b {
		return Data{1}
	}
	return Data{0}
}

// StringData encodes a UTF-8 string payload.
func StringData(s string) Data {
	return Data(s)
}

// Int decodes an 8-byte integer payload.
func (d Data) Int() (int64, error) {
	if len(d) != 8 {
		return 0, fmt.Errorf("int needs 8 bytes, got %d: %w", len(d), ErrDataFormat)
	}
	return int64(binary.BigEndian.Uint64(d)), nil
}

// Float decodes an 8-byte float payload.
func (d Data) Float() (float64, error) {
	if len(d) != 8 {
		return 0, fmt.Errorf("float needs 8 bytes, got %d: %w", len(d), ErrDataFormat)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(d)), nil
}

// Bool decodes a single-byte boolean payload.
func (d Data) Bool() (bool, error) {
	if len(d) != 1 {
		return false, fmt.Errorf("bool needs 1 byte, got %d: %w", len(d), ErrDataFormat)
	}
	return d[0] == 1, nil
}

// Hex renders the payload as upper-case hyphen-separated octet pairs,
// or "--" when empty. This is the canonical print form of dataization
// results.
func (d Data) Hex() string {
	if len(d) == 0 {
		return "--"
	}
	var b strings.Builder
	for i, octet := range d {
		if i > 0 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%02X", octet)
	}
	return b.String()
}

// ParseData reads a textual data literal: hyphen- or space-separated
// hexadecimal octet pairs ("DE-AD-BE-EF", "--" for empty), or one of
// the tagged forms "int/42", "float/3.14", "bool/true", "string/hi",
// "bytes/DE-AD".
func ParseData(s string) (Data, error) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, s)
	if stripped == "" {
		return Data{}, nil
	}
	if isHexPairs(stripped) {
		d := make(Data, 0, len(stripped)/2)
		for i := 0; i < len(stripped); i += 2 {
			n, err := strconv.ParseUint(stripped[i:i+2], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("octet %q in %q: %w", stripped[i:i+2], s, ErrDataFormat)
			}
			d = append(d, byte(n))
		}
		return d, nil
	}
	tag, tail, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("data literal %q: %w", s, ErrDataFormat)
	}
	switch tag {
	case "bytes":
		return ParseData(tail)
	case "string":
		return StringData(tail), nil
	case "int":
		n, err := strconv.ParseInt(tail, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("int literal %q: %w", tail, ErrDataFormat)
		}
		return IntData(n), nil
	case "float":
		f, err := strconv.ParseFloat(tail, 64)
		if err != nil {
			return nil, fmt.Errorf("float literal %q: %w", tail, ErrDataFormat)
		}
		return FloatData(f), nil
	case "bool":
		return BoolData(tail == "true"), nil
	default:
		return nil, fmt.Errorf("data tag %q: %w", tag, ErrDataFormat)
	}
}

func isHexPairs(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
