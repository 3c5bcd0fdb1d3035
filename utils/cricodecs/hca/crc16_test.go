package hca

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestChecksumVector(t *testing.T) {
	vec := []byte{
		0xC8, 0xC3, 0xC1, 0x00, 0x02, 0x00, 0x00, 0x60, 0xE6, 0xED, 0xF4, 0x00, 0x02, 0x00, 0xBB, 0x80,
		0x00, 0x00, 0x2C, 0xD5, 0x00, 0x80, 0x03, 0x83, 0xE3, 0xEF, 0xED, 0xF0, 0x02, 0xAA, 0x01, 0x0F,
		0x01, 0x00, 0x80, 0x80, 0x00, 0x00, 0x00, 0x00, 0xE3, 0xE9, 0xF0, 0xE8, 0x00, 0x38, 0xF0, 0xE1,
		0xE4, 0x00,
	}
	// 94 bytes: the 0x60-byte header without its trailing checksum.
	vec = append(vec, make([]byte, 44)...)

	sum := Checksum(vec)
	if sum != 0x2036 {
		t.Fatalf("Checksum = %#04x, want 0x2036", sum)
	}

	// The checksum is stored big-endian; read back little-endian it is 13856.
	stored := make([]byte, 2)
	binary.BigEndian.PutUint16(stored, sum)
	if got := binary.LittleEndian.Uint16(stored); got != 13856 {
		t.Errorf("stored checksum = %d, want 13856", got)
	}
}

func TestPutChecksumZeroes(t *testing.T) {
	data := []byte("some header bytes\x00\x00")
	putChecksum(data)
	if Checksum(data) != 0 {
		t.Errorf("Checksum after putChecksum = %#04x, want 0", Checksum(data))
	}
	if bytes.Equal(data[len(data)-2:], []byte{0, 0}) {
		t.Errorf("checksum bytes were not written")
	}
}
