package usm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"haruki-cutscenes/utils"
)

const (
	SignatureCRID = 0x43524944 // CRID
	SignatureSFV  = 0x40534656 // @SFV
	SignatureSFA  = 0x40534641 // @SFA
)

const (
	ChunkHeaderSize = 0x20
	// sizes and offsets in the header count from this point
	chunkPrefixSize = 8
)

const (
	DataTypeStream  = 0
	DataTypeHeader  = 1
	DataTypeSection = 2
	DataTypeSeek    = 3
)

var ErrTruncatedChunk = errors.New("usm: truncated chunk")

// ChunkHeader is the fixed 32-byte header in front of every chunk.
type ChunkHeader struct {
	Signature   uint32
	DataSize    uint32
	DataOffset  uint8
	PaddingSize uint16
	ChannelNo   uint8
	DataType    uint8
	FrameTime   uint32
	FrameRate   uint32
}

func parseChunkHeader(b []byte) ChunkHeader {
	return ChunkHeader{
		Signature:   binary.BigEndian.Uint32(b[0:]),
		DataSize:    binary.BigEndian.Uint32(b[4:]),
		DataOffset:  b[9],
		PaddingSize: binary.BigEndian.Uint16(b[10:]),
		ChannelNo:   b[12],
		DataType:    b[15],
		FrameTime:   binary.BigEndian.Uint32(b[16:]),
		FrameRate:   binary.BigEndian.Uint32(b[20:]),
	}
}

// PayloadSize is dataSize - dataOffset - paddingSize.
func (h ChunkHeader) PayloadSize() int {
	return int(h.DataSize) - int(h.DataOffset) - int(h.PaddingSize)
}

func (h ChunkHeader) SignatureString() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.Signature)
	return string(b[:])
}

// validate only rejects sizes that cannot be read. A data offset below 0x18
// places the payload start inside the 32-byte header; it is honoured as is.
func (h ChunkHeader) validate() error {
	if h.PayloadSize() < 0 {
		return fmt.Errorf("%w: %s data size %d smaller than offset %d + padding %d",
			ErrTruncatedChunk, h.SignatureString(), h.DataSize, h.DataOffset, h.PaddingSize)
	}
	return nil
}

// ChunkReader walks the chunk stream in file order.
type ChunkReader struct {
	bs     *utils.BinaryStream
	offset int64
}

func NewChunkReader(r io.ReadSeeker) *ChunkReader {
	return &ChunkReader{bs: utils.NewBinaryStream(r, "big")}
}

// Offset is the position of the next chunk header.
func (cr *ChunkReader) Offset() int64 {
	return cr.offset
}

// Next returns the next chunk header and its payload. It returns io.EOF
// at a clean end of stream.
func (cr *ChunkReader) Next() (ChunkHeader, []byte, error) {
	raw, err := cr.bs.ReadBytes(ChunkHeaderSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ChunkHeader{}, nil, io.EOF
		}
		return ChunkHeader{}, nil, fmt.Errorf("%w: header at %d: %v", ErrTruncatedChunk, cr.offset, err)
	}
	h := parseChunkHeader(raw)
	if err := h.validate(); err != nil {
		return h, nil, fmt.Errorf("chunk at %d: %w", cr.offset, err)
	}

	payloadStart := cr.offset + chunkPrefixSize + int64(h.DataOffset)
	if err := cr.bs.Seek(payloadStart); err != nil {
		return h, nil, err
	}
	payload, err := cr.bs.ReadBytes(h.PayloadSize())
	if err != nil {
		return h, nil, fmt.Errorf("%w: %s payload at %d: %v", ErrTruncatedChunk, h.SignatureString(), payloadStart, err)
	}

	cr.offset += chunkPrefixSize + int64(h.DataSize)
	if err := cr.bs.Seek(cr.offset); err != nil {
		return h, nil, err
	}
	return h, payload, nil
}
