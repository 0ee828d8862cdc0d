// Package modbuscomm polls holding registers of a telemetry device and turns
// the readings into initial condition edits.
package modbuscomm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType defines the type of Modbus register for decoding
type DataType string

// Constants of DataType
const (
	u16 DataType = "u16"
	u32 DataType = "u32"
	u64 DataType = "u64"
	i16 DataType = "i16"
	i32 DataType = "i32"
	i64 DataType = "i64"
	f32 DataType = "f32"
	f64 DataType = "f64"
)

// Endian byte order of Modbus register for decoding
type Endian string

// Constants of Endian
const (
	littleEndian Endian = "little"
	bigEndian    Endian = "big"
)

// decode converts the register bytes into a float64
func decode(bytes []byte, t DataType, e Endian) (float64, error) {
	if want := 2 * int(sizeOf(t)); want == 0 || len(bytes) < want {
		return 0, fmt.Errorf("%d bytes for a %q register", len(bytes), t)
	}
	endian := byteOrder(e)
	switch t {
	case u16:
		return float64(endian.Uint16(bytes)), nil
	case i16:
		return float64(int16(endian.Uint16(bytes))), nil
	case u32:
		return float64(endian.Uint32(bytes)), nil
	case i32:
		return float64(int32(endian.Uint32(bytes))), nil
	case f32:
		return float64(math.Float32frombits(endian.Uint32(bytes))), nil
	case u64:
		return float64(endian.Uint64(bytes)), nil
	case i64:
		return float64(int64(endian.Uint64(bytes))), nil
	default:
		return math.Float64frombits(endian.Uint64(bytes)), nil
	}
}

// byteOrder returns the binary.ByteOrder of the register
func byteOrder(e Endian) binary.ByteOrder {
	if e == littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u16, i16:
		return 1
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	}
	return 0
}
