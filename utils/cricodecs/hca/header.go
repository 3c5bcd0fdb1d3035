package hca

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	hcaMask               = 0x7F7F7F7F
	hcaSubframes          = 8
	hcaSamplesPerSubframe = 128
	hcaSamplesPerBlock    = hcaSubframes * hcaSamplesPerSubframe
	hcaMinBlockSize       = 0x8
	hcaMaxBlockSize       = 0xFFFF
	hcaMaxChannels        = 16

	tagHCA  = 0x00414348
	tagFmt  = 0x00746D66
	tagComp = 0x706D6F63
	tagDec  = 0x00636564
	tagVbr  = 0x00726276
	tagATH  = 0x00687461
	tagLoop = 0x706F6F6C
	tagCiph = 0x68706963
	tagRva  = 0x00617672
	tagComm = 0x6D6D6F63
	tagPad  = 0x00646170
)

// Compression holds the r01..r09 parameters of the comp or dec sub-header.
// R09 is derived, never read.
type Compression struct {
	R01, R02, R03, R04, R05, R06, R07, R08, R09 uint32
}

type Header struct {
	Version    uint16
	HeaderSize uint16
	Channels   uint32
	SampleRate uint32
	BlockCount uint32
	BlockSize  uint16
	Comp       Compression
	ATHType    uint16
	Loop       bool
	CipherType uint16
	Volume     float32
	Encrypted  bool

	raw          []byte
	cipherOffset int
}

// DataSize is the byte length of the block area following the header.
func (h *Header) DataSize() int {
	return int(h.BlockSize) * int(h.BlockCount)
}

// Bytes returns the header with its tags unmasked and its checksum rewritten.
func (h *Header) Bytes() []byte {
	return append([]byte(nil), h.raw...)
}

// DecryptedBytes returns the header with the cipher type set to none.
func (h *Header) DecryptedBytes() []byte {
	b := h.Bytes()
	if h.cipherOffset > 0 {
		b[h.cipherOffset] = 0
		b[h.cipherOffset+1] = 0
		putChecksum(b)
	}
	return b
}

// IsHCA reports whether data starts with a plain or masked HCA magic.
func IsHCA(data []byte) bool {
	return len(data) >= 8 && binary.LittleEndian.Uint32(data)&hcaMask == tagHCA
}

// ParseHeader reads the tagged header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	h := &Header{Volume: 1}
	sign := binary.LittleEndian.Uint32(data)
	switch {
	case sign == tagHCA:
	case sign&hcaMask == tagHCA:
		h.Encrypted = true
	default:
		return nil, fmt.Errorf("%w: %#08x", ErrMalformedMagic, sign)
	}
	h.Version = binary.BigEndian.Uint16(data[4:])
	h.HeaderSize = binary.BigEndian.Uint16(data[6:])
	if int(h.HeaderSize) < 8+16 || len(data) < int(h.HeaderSize) {
		return nil, fmt.Errorf("%w: header size %d", ErrTruncated, h.HeaderSize)
	}
	if Checksum(data[:h.HeaderSize]) != 0 {
		return nil, ErrChecksumMismatch
	}

	raw := append([]byte(nil), data[:h.HeaderSize]...)
	p := &headerParser{data: raw, encrypted: h.Encrypted}
	if h.Encrypted {
		for i := 0; i < 8; i++ {
			raw[i] &= 0x7F
		}
	}
	p.offset = 8

	if !p.tag(tagFmt) {
		return nil, fmt.Errorf("%w: expected fmt at %#x", ErrUnknownHeaderTag, p.offset)
	}
	h.Channels = uint32(p.u8(4))
	h.SampleRate = uint32(p.u8(5))<<16 | uint32(p.u8(6))<<8 | uint32(p.u8(7))
	h.BlockCount = p.u32(8)
	p.offset += 16

	switch {
	case p.tag(tagComp):
		h.BlockSize = p.u16(4)
		h.Comp.R01 = uint32(p.u8(6))
		h.Comp.R02 = uint32(p.u8(7))
		h.Comp.R03 = uint32(p.u8(8))
		h.Comp.R04 = uint32(p.u8(9))
		h.Comp.R05 = uint32(p.u8(10))
		h.Comp.R06 = uint32(p.u8(11))
		h.Comp.R07 = uint32(p.u8(12))
		h.Comp.R08 = uint32(p.u8(13))
		p.offset += 16
	case p.tag(tagDec):
		h.BlockSize = p.u16(4)
		h.Comp.R01 = uint32(p.u8(6))
		h.Comp.R02 = uint32(p.u8(7))
		h.Comp.R03 = uint32(p.u8(10) >> 4)
		h.Comp.R04 = uint32(p.u8(10) & 0xF)
		// Band counts are stored minus one.
		h.Comp.R05 = uint32(p.u8(8)) + 1
		if p.u8(11) > 0 {
			h.Comp.R06 = uint32(p.u8(9)) + 1
		} else {
			h.Comp.R06 = uint32(p.u8(8)) + 1
		}
		h.Comp.R07 = h.Comp.R05 - h.Comp.R06
		h.Comp.R08 = 0
		p.offset += 12
	default:
		return nil, fmt.Errorf("%w: expected comp or dec at %#x", ErrUnknownHeaderTag, p.offset)
	}
	if h.BlockSize != 0 && h.BlockSize < hcaMinBlockSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, h.BlockSize)
	}
	if h.Comp.R01 > h.Comp.R02 || h.Comp.R02 > 0x1F {
		return nil, fmt.Errorf("%w: r01=%d r02=%d", ErrInvalidCompressionParameters, h.Comp.R01, h.Comp.R02)
	}
	if h.Comp.R03 == 0 {
		h.Comp.R03 = 1
	}

	if p.tag(tagVbr) {
		p.offset += 8
	}

	if p.tag(tagATH) {
		h.ATHType = p.u16(4)
		p.offset += 6
	} else if h.Version < 0x200 {
		h.ATHType = 1
	}

	if p.tag(tagLoop) {
		h.Loop = true
		p.offset += 16
	}

	if p.tag(tagCiph) {
		h.cipherOffset = p.offset + 4
		h.CipherType = p.u16(4)
		switch h.CipherType {
		case CipherNone, CipherFixed, CipherKeyed:
		default:
			return nil, fmt.Errorf("%w: %#x", ErrUnsupportedCipherType, h.CipherType)
		}
		p.offset += 6
	}

	if p.tag(tagRva) {
		h.Volume = math.Float32frombits(p.u32(4))
		p.offset += 8
	}

	if p.tag(tagComm) {
		p.offset += 5
	}

	if p.tag(tagPad) {
		p.offset += 4
	}

	putChecksum(raw)
	h.raw = raw
	return h, nil
}

// headerParser walks the sub-headers of a copied header, unmasking each
// recognised tag in place.
type headerParser struct {
	data      []byte
	offset    int
	encrypted bool
}

func (p *headerParser) tag(want uint32) bool {
	if p.offset+4 > len(p.data) {
		return false
	}
	sign := binary.LittleEndian.Uint32(p.data[p.offset:])
	if p.encrypted {
		sign &= hcaMask
	}
	if sign != want {
		return false
	}
	binary.LittleEndian.PutUint32(p.data[p.offset:], sign)
	return true
}

func (p *headerParser) u8(rel int) byte {
	i := p.offset + rel
	if i >= len(p.data) {
		return 0
	}
	return p.data[i]
}

func (p *headerParser) u16(rel int) uint16 {
	return uint16(p.u8(rel))<<8 | uint16(p.u8(rel+1))
}

func (p *headerParser) u32(rel int) uint32 {
	return uint32(p.u16(rel))<<16 | uint32(p.u16(rel+2))
}
