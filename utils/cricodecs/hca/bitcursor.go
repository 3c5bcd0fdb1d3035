package hca

var peekMask = [8]int{0xFFFFFF, 0x7FFFFF, 0x3FFFFF, 0x1FFFFF, 0x0FFFFF, 0x07FFFF, 0x03FFFF, 0x01FFFF}

// BitCursor reads a block MSB-first. The trailing 16 bits of the block hold
// its checksum and are never returned as data.
type BitCursor struct {
	data []byte
	size int
	bit  int
}

func NewBitCursor(data []byte, blockSize int) *BitCursor {
	return &BitCursor{data: data, size: blockSize*8 - 16}
}

// Peek returns the next n bits (n <= 24) without advancing. Reads that end
// past the readable region return 0.
func (c *BitCursor) Peek(n int) int {
	if n < 0 || c.bit < 0 || c.bit+n > c.size {
		return 0
	}
	off := c.bit >> 3
	v := int(c.byteAt(off))
	v = v<<8 | int(c.byteAt(off+1))
	v = v<<8 | int(c.byteAt(off+2))
	v &= peekMask[c.bit&7]
	shift := 24 - (c.bit & 7) - n
	if shift < 0 {
		return 0
	}
	return v >> shift
}

func (c *BitCursor) Take(n int) int {
	v := c.Peek(n)
	c.bit += n
	return v
}

// Skip moves the cursor by n bits; n may be negative.
func (c *BitCursor) Skip(n int) {
	c.bit += n
}

func (c *BitCursor) Position() int {
	return c.bit
}

func (c *BitCursor) byteAt(i int) byte {
	if i < 0 || i >= len(c.data) {
		return 0
	}
	return c.data[i]
}
