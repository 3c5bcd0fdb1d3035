package hca

import (
	"fmt"
	"os"
)

// Decoder turns the blocks of one HCA stream into PCM. It holds per-channel
// overlap state, so blocks must be decoded in order and a Decoder must not be
// shared between goroutines.
type Decoder struct {
	header   *Header
	ath      [hcaSamplesPerSubframe]byte
	cipher   *CipherTable
	channels []*stChannel
	data     []byte
	block    []byte
}

// NewDecoder parses the header of data and prepares the channel state. key1
// and key2 are the halves of the title key used by keyed ciphers.
func NewDecoder(data []byte, key1, key2 uint32) (*Decoder, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Channels == 0 || h.Channels > hcaMaxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedChannelLayout, h.Channels)
	}
	if h.BlockSize == 0 {
		return nil, fmt.Errorf("%w: variable block size", ErrInvalidBlockSize)
	}
	end := int(h.HeaderSize) + h.DataSize()
	if len(data) < end {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, end, len(data))
	}

	d := &Decoder{
		header: h,
		data:   data[h.HeaderSize:end],
		block:  make([]byte, h.BlockSize),
	}
	if d.ath, err = newATHTable(h.ATHType, h.SampleRate); err != nil {
		return nil, err
	}
	if d.cipher, err = NewCipherTable(h.CipherType, key1, key2); err != nil {
		return nil, err
	}
	if err = d.initChannels(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewDecoderFromFile reads a whole .hca file and returns its decoder.
func NewDecoderFromFile(path string, key1, key2 uint32) (*Decoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewDecoder(data, key1, key2)
}

func (d *Decoder) Header() *Header {
	return d.header
}

func headerCeil2(a, b int) int {
	if b < 1 {
		return 0
	}
	result := a / b
	if a%b != 0 {
		result++
	}
	return result
}

func (d *Decoder) initChannels() error {
	h := d.header
	c := &h.Comp
	if c.R01 != 1 || c.R02 != 15 {
		return fmt.Errorf("%w: r01=%d r02=%d", ErrInvalidCompressionParameters, c.R01, c.R02)
	}
	r05, r06, r07, r08 := int(c.R05), int(c.R06), int(int32(c.R07)), int(c.R08)
	if rest := r05 - (r06 + r07); rest > 0 {
		c.R09 = uint32(headerCeil2(rest, r08))
	} else {
		c.R09 = 0
	}

	var types [hcaMaxChannels]channelType
	channels := int(h.Channels)
	perTrack := channels / int(c.R03)
	if r07 != 0 && perTrack > 1 {
		pair := func(at int) {
			if at+1 < hcaMaxChannels {
				types[at] = stereoPrimary
				types[at+1] = stereoSecondary
			}
		}
		for i, base := 0, 0; i < int(c.R03); i, base = i+1, base+perTrack {
			switch perTrack {
			case 2, 3:
				pair(base)
			case 4:
				pair(base)
				if c.R04 == 0 {
					pair(base + 2)
				}
			case 5:
				pair(base)
				if c.R04 <= 2 {
					pair(base + 3)
				}
			case 6, 7:
				pair(base)
				pair(base + 4)
			case 8:
				pair(base)
				pair(base + 4)
				pair(base + 6)
			}
		}
	}

	d.channels = make([]*stChannel, channels)
	for i := range d.channels {
		ch := &stChannel{
			channelType: types[i],
			valueOffset: r06 + r07,
			count:       r06,
		}
		if types[i] != stereoSecondary {
			ch.count += r07
		}
		if ch.count < 0 || ch.count > hcaSamplesPerSubframe {
			return fmt.Errorf("%w: %d coefficients", ErrInvalidCompressionParameters, ch.count)
		}
		d.channels[i] = ch
	}
	return nil
}

// decodeBlock unmasks one block in place and decodes its 8 subframes for
// every channel. A block without the sync word leaves the previous output
// untouched.
func (d *Decoder) decodeBlock(block []byte) {
	d.cipher.Mask(block)
	c := &d.header.Comp
	br := NewBitCursor(block, len(block))
	if br.Take(16) != 0xFFFF {
		return
	}
	bias := (br.Take(9) << 8) - br.Take(7)

	r05, r06, r07, r08, r09 := int(c.R05), int(c.R06), int(int32(c.R07)), int(c.R08), int(c.R09)
	for _, ch := range d.channels {
		ch.decodeScales(br, r09, bias, &d.ath)
	}
	for i := 0; i < hcaSubframes; i++ {
		for _, ch := range d.channels {
			ch.dequantize(br)
		}
		for _, ch := range d.channels {
			ch.reconstructIntensity(r09, r08, r07+r06, r05)
		}
		for j := 0; j < len(d.channels)-1; j++ {
			d.channels[j].splitStereo(i, r05-r06, r06, r07, d.channels[j+1])
		}
		for _, ch := range d.channels {
			ch.synthesize(i)
		}
	}
}

// DecodeBlocks decodes every block in order and hands the 8x128 samples of
// each channel to fn. The slices passed to fn are reused between calls.
func (d *Decoder) DecodeBlocks(fn func(blockIndex int, waves [][hcaSubframes][hcaSamplesPerSubframe]float32) error) error {
	size := int(d.header.BlockSize)
	waves := make([][hcaSubframes][hcaSamplesPerSubframe]float32, len(d.channels))
	for b := 0; b < int(d.header.BlockCount); b++ {
		copy(d.block, d.data[b*size:(b+1)*size])
		d.decodeBlock(d.block)
		for i, ch := range d.channels {
			waves[i] = ch.wave
		}
		if err := fn(b, waves); err != nil {
			return err
		}
	}
	return nil
}
