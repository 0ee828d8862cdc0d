package modbuscomm

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		typ   DataType
		end   Endian
		want  float64
	}{
		{"u16 big", []byte{4, 210}, u16, bigEndian, 1234},
		{"u16 little", []byte{210, 4}, u16, littleEndian, 1234},
		{"i16 little", []byte{46, 251}, i16, littleEndian, -1234},
		{"u32 big", []byte{0, 0, 4, 210}, u32, bigEndian, 1234},
		{"u32 little", []byte{210, 4, 0, 0}, u32, littleEndian, 1234},
		{"i32 big", []byte{255, 255, 251, 46}, i32, bigEndian, -1234},
		{"f32 big", []byte{196, 154, 64, 0}, f32, bigEndian, -1234},
		{"u64 big", []byte{0, 0, 0, 0, 0, 0, 4, 210}, u64, bigEndian, 1234},
		{"u64 little", []byte{210, 4, 0, 0, 0, 0, 0, 0}, u64, littleEndian, 1234},
		{"f64 big", []byte{192, 147, 72, 0, 0, 0, 0, 0}, f64, bigEndian, -1234},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decode(tc.bytes, tc.typ, tc.end)
			assert.NilError(t, err)
			assert.Equal(t, got, tc.want)
		})
	}
}

func TestDecodeShortResponse(t *testing.T) {
	_, err := decode([]byte{1, 2}, f32, bigEndian)
	assert.ErrorContains(t, err, `2 bytes for a "f32" register`)
	_, err = decode([]byte{1, 2}, DataType("bcd"), bigEndian)
	assert.ErrorContains(t, err, `"bcd"`)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, sizeOf(i16), uint16(1))
	assert.Equal(t, sizeOf(f32), uint16(2))
	assert.Equal(t, sizeOf(f64), uint16(4))
	assert.Equal(t, sizeOf(DataType("bcd")), uint16(0))
}
