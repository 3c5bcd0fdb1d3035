package usm

const maskSize = 0x20

const (
	videoMaskOffset = 0x40
	videoMaskMin    = 0x200
	audioMaskOffset = 0x140
)

// Mask holds the XOR tables derived from the two key halves.
type Mask struct {
	video1 [maskSize]byte
	video2 [maskSize]byte
	audio  [maskSize]byte
}

// NewMask derives the masks from the little-endian key halves.
func NewMask(key1, key2 uint32) *Mask {
	k1 := [4]byte{byte(key1), byte(key1 >> 8), byte(key1 >> 16), byte(key1 >> 24)}
	k2 := [3]byte{byte(key2), byte(key2 >> 8), byte(key2 >> 16)}

	var t [maskSize]byte
	t[0x00] = k1[0]
	t[0x01] = k1[1]
	t[0x02] = k1[2]
	t[0x03] = k1[3] - 0x34
	t[0x04] = k2[0] + 0xF9
	t[0x05] = k2[1] ^ 0x13
	t[0x06] = k2[2] + 0x61
	t[0x07] = t[0x00] ^ 0xFF
	t[0x08] = t[0x02] + t[0x01]
	t[0x09] = t[0x01] - t[0x07]
	t[0x0A] = t[0x02] ^ 0xFF
	t[0x0B] = t[0x01] ^ 0xFF
	t[0x0C] = t[0x0B] + t[0x09]
	t[0x0D] = t[0x08] - t[0x03]
	t[0x0E] = t[0x0D] ^ 0xFF
	t[0x0F] = t[0x0A] - t[0x0B]
	t[0x10] = t[0x08] - t[0x0F]
	t[0x11] = t[0x10] ^ t[0x07]
	t[0x12] = t[0x0F] ^ 0xFF
	t[0x13] = t[0x03] ^ 0x10
	t[0x14] = t[0x04] - 0x32
	t[0x15] = t[0x05] + 0xED
	t[0x16] = t[0x06] ^ 0xF3
	t[0x17] = t[0x13] - t[0x0F]
	t[0x18] = t[0x15] + t[0x07]
	t[0x19] = 0x21 - t[0x13]
	t[0x1A] = t[0x14] ^ t[0x17]
	t[0x1B] = t[0x16] + t[0x16]
	t[0x1C] = t[0x17] + 0x44
	t[0x1D] = t[0x03] + t[0x04]
	t[0x1E] = t[0x05] - t[0x16]
	t[0x1F] = t[0x1D] ^ t[0x13]

	m := &Mask{video1: t}
	urc := []byte("URUC")
	for i := range t {
		m.video2[i] = t[i] ^ 0xFF
		if i&1 != 0 {
			m.audio[i] = urc[(i>>1)&3]
		} else {
			m.audio[i] = t[i] ^ 0xFF
		}
	}
	return m
}

// Video unmasks a video payload in place. Payloads shorter than
// 0x240 bytes are stored in clear.
func (m *Mask) Video(data []byte) {
	size := len(data) - videoMaskOffset
	if size < videoMaskMin {
		return
	}
	body := data[videoMaskOffset:]

	mask := m.video2
	for i := 0x100; i < size; i++ {
		body[i] ^= mask[i&0x1F]
		mask[i&0x1F] = body[i] ^ m.video2[i&0x1F]
	}

	mask = m.video1
	for i := 0; i < 0x100; i++ {
		mask[i&0x1F] ^= body[0x100+i]
		body[i] ^= mask[i&0x1F]
	}
}

// Audio unmasks an audio payload in place from offset 0x140.
func (m *Mask) Audio(data []byte) {
	if len(data) <= audioMaskOffset {
		return
	}
	body := data[audioMaskOffset:]
	for i := range body {
		body[i] ^= m.audio[i&0x1F]
	}
}
