package utils

import (
	"bytes"
	"io"
	"testing"
)

func TestBinaryStreamBigEndian(t *testing.T) {
	data := []byte{
		0x12, 0x34,
		0xDE, 0xAD, 0xBE, 0xEF,
		0x3F, 0x80, 0x00, 0x00,
		0xFF,
		'a', 'b', 0x00,
	}
	bs := NewBinaryStream(bytes.NewReader(data), "big")

	if v, err := bs.ReadUInt16(); err != nil || v != 0x1234 {
		t.Errorf("ReadUInt16() = %#x, %v, want 0x1234", v, err)
	}
	if v, err := bs.ReadUInt32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadUInt32() = %#x, %v, want 0xdeadbeef", v, err)
	}
	if v, err := bs.ReadFloat32(); err != nil || v != 1 {
		t.Errorf("ReadFloat32() = %v, %v, want 1", v, err)
	}
	if v, err := bs.ReadChar(); err != nil || v != -1 {
		t.Errorf("ReadChar() = %d, %v, want -1", v, err)
	}
	if s, err := bs.ReadStringToNull(); err != nil || string(s) != "ab" {
		t.Errorf("ReadStringToNull() = %q, %v, want ab", s, err)
	}
	if _, err := bs.ReadByte(); err != io.EOF {
		t.Errorf("ReadByte() at end error = %v, want EOF", err)
	}
}

func TestBinaryStreamAtKeepsPosition(t *testing.T) {
	data := []byte{0x01, 0x02, 'x', 'y', 0x00, 0x09}
	bs := NewBinaryStream(bytes.NewReader(data), "little")
	if _, err := bs.ReadByte(); err != nil {
		t.Fatal(err)
	}
	s, err := bs.ReadStringToNullAt(2)
	if err != nil || string(s) != "xy" {
		t.Errorf("ReadStringToNullAt() = %q, %v, want xy", s, err)
	}
	b, err := bs.ReadBytesAt(1, 5)
	if err != nil || b[0] != 0x09 {
		t.Errorf("ReadBytesAt() = % x, %v, want 09", b, err)
	}
	if pos := bs.Position(); pos != 1 {
		t.Errorf("Position() = %d, want 1", pos)
	}
	if _, err := bs.ReadBytes(-1); err == nil {
		t.Errorf("ReadBytes(-1) error = nil, want error")
	}
}
