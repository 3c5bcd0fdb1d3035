package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// BinaryStream reads fixed-width values from a seekable stream in the
// configured byte order.
type BinaryStream struct {
	BaseStream io.ReadSeeker
	Endian     binary.ByteOrder
}

func NewBinaryStream(baseStream io.ReadSeeker, endian string) *BinaryStream {
	bs := &BinaryStream{
		BaseStream: baseStream,
	}
	if endian == "big" {
		bs.Endian = binary.BigEndian
	} else {
		bs.Endian = binary.LittleEndian
	}
	return bs
}

func (bs *BinaryStream) Position() int64 {
	pos, _ := bs.BaseStream.Seek(0, io.SeekCurrent)
	return pos
}

func (bs *BinaryStream) Seek(offset int64) error {
	_, err := bs.BaseStream.Seek(offset, io.SeekStart)
	return err
}

func (bs *BinaryStream) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(bs.BaseStream, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (bs *BinaryStream) ReadBytes(length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative read length %d", length)
	}
	buf := make([]byte, length)
	_, err := io.ReadFull(bs.BaseStream, buf)
	return buf, err
}

func (bs *BinaryStream) ReadBytesAt(length int, offset int64) ([]byte, error) {
	back := bs.Position()
	defer func() { _ = bs.Seek(back) }()
	if err := bs.Seek(offset); err != nil {
		return nil, err
	}
	return bs.ReadBytes(length)
}

func (bs *BinaryStream) ReadChar() (int8, error) {
	b, err := bs.ReadByte()
	return int8(b), err
}

func (bs *BinaryStream) ReadUChar() (uint8, error) {
	return bs.ReadByte()
}

func (bs *BinaryStream) ReadInt16() (int16, error) {
	v, err := bs.ReadUInt16()
	return int16(v), err
}

func (bs *BinaryStream) ReadUInt16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(bs.BaseStream, buf[:]); err != nil {
		return 0, err
	}
	return bs.Endian.Uint16(buf[:]), nil
}

func (bs *BinaryStream) ReadInt32() (int32, error) {
	v, err := bs.ReadUInt32()
	return int32(v), err
}

func (bs *BinaryStream) ReadUInt32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(bs.BaseStream, buf[:]); err != nil {
		return 0, err
	}
	return bs.Endian.Uint32(buf[:]), nil
}

func (bs *BinaryStream) ReadUInt64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(bs.BaseStream, buf[:]); err != nil {
		return 0, err
	}
	return bs.Endian.Uint64(buf[:]), nil
}

func (bs *BinaryStream) ReadFloat32() (float32, error) {
	bits, err := bs.ReadUInt32()
	return math.Float32frombits(bits), err
}

func (bs *BinaryStream) ReadStringToNull() ([]byte, error) {
	var result []byte
	for {
		b, err := bs.ReadByte()
		if err != nil {
			return result, err
		}
		if b == 0 {
			break
		}
		result = append(result, b)
	}
	return result, nil
}

func (bs *BinaryStream) ReadStringToNullAt(offset int64) ([]byte, error) {
	back := bs.Position()
	defer func() { _ = bs.Seek(back) }()
	if err := bs.Seek(offset); err != nil {
		return nil, err
	}
	return bs.ReadStringToNull()
}
