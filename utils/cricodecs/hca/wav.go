package hca

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/vazrupe/endibuf"
)

// Output sample formats.
const (
	ModeFloat = 0
	Mode8Bit  = 8
	Mode16Bit = 16
	Mode24Bit = 24
	Mode32Bit = 32
)

const WaveHeaderSize = 44

type waveFormat struct {
	fmtType    uint16
	channels   uint16
	sampleRate uint32
	blockAlign uint16
	bitCount   uint16
	dataSize   uint32
}

func newWaveFormat(h *Header, mode int) (waveFormat, error) {
	f := waveFormat{
		fmtType:    1,
		channels:   uint16(h.Channels),
		sampleRate: h.SampleRate,
		bitCount:   uint16(mode),
	}
	switch mode {
	case ModeFloat:
		f.fmtType = 3
		f.bitCount = 32
	case Mode8Bit, Mode16Bit, Mode24Bit, Mode32Bit:
	default:
		return f, fmt.Errorf("%w: %d", ErrUnsupportedSampleMode, mode)
	}
	f.blockAlign = f.bitCount / 8 * f.channels
	f.dataSize = h.BlockCount * hcaSamplesPerBlock * uint32(f.blockAlign)
	return f, nil
}

func (f waveFormat) write(w *endibuf.Writer) error {
	endianSave := w.Endian
	w.Endian = binary.LittleEndian
	defer func() { w.Endian = endianSave }()

	fields := []any{
		[]byte("RIFF"), 0x1C + 8 + f.dataSize, []byte("WAVEfmt "),
		uint32(0x10), f.fmtType, f.channels, f.sampleRate, f.sampleRate * uint32(f.blockAlign),
		f.blockAlign, f.bitCount,
		[]byte("data"), f.dataSize,
	}
	for _, v := range fields {
		if err := w.WriteData(v); err != nil {
			return err
		}
	}
	return nil
}

// WavSize is the byte length of the WAV file produced for h in mode.
func WavSize(h *Header, mode int) (int64, error) {
	f, err := newWaveFormat(h, mode)
	if err != nil {
		return 0, err
	}
	return WaveHeaderSize + int64(f.dataSize), nil
}

// WriteWAV decodes every block and writes a RIFF/WAVE stream to out. Samples
// go out one block at a time.
func (d *Decoder) WriteWAV(out io.WriteSeeker, mode int) error {
	format, err := newWaveFormat(d.header, mode)
	if err != nil {
		return err
	}
	w := endibuf.NewWriter(out)
	if err = format.write(w); err != nil {
		return fmt.Errorf("write wave header: %w", err)
	}

	volume := d.header.Volume
	sample := make([]byte, 4)
	buf := make([]byte, 0, hcaSamplesPerBlock*int(format.blockAlign))
	return d.DecodeBlocks(func(block int, waves [][hcaSubframes][hcaSamplesPerSubframe]float32) error {
		buf = buf[:0]
		for i := 0; i < hcaSubframes; i++ {
			for j := 0; j < hcaSamplesPerSubframe; j++ {
				for k := range waves {
					f := waves[k][i][j] * volume
					if f > 1 {
						f = 1
					} else if f < -1 {
						f = -1
					}
					buf = append(buf, encodeSample(sample, f, mode)...)
				}
			}
		}
		if err := w.WriteBytes(buf); err != nil {
			return fmt.Errorf("write block %d: %w", block, err)
		}
		return nil
	})
}

func encodeSample(buf []byte, f float32, mode int) []byte {
	switch mode {
	case Mode8Bit:
		buf[0] = byte(int(f*0x7F) + 0x80)
		return buf[:1]
	case Mode16Bit:
		binary.LittleEndian.PutUint16(buf, uint16(int16(f*0x7FFF)))
		return buf[:2]
	case Mode24Bit:
		v := int32(f * 0x7FFFFF)
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
		buf[2] = byte(v >> 16)
		return buf[:3]
	case Mode32Bit:
		binary.LittleEndian.PutUint32(buf, uint32(int32(float64(f)*0x7FFFFFFF)))
		return buf[:4]
	default:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		return buf[:4]
	}
}

// DecodeFile decodes src to a WAV file at dst. A partially written dst is
// removed on failure.
func DecodeFile(src, dst string, key1, key2 uint32, mode int) error {
	d, err := NewDecoderFromFile(src, key1, key2)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err = d.WriteWAV(f, mode); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}
