package hca

import "fmt"

const (
	CipherNone  = 0
	CipherFixed = 1
	CipherKeyed = 0x38
)

// CipherTable is a byte substitution applied to every block before it is parsed.
type CipherTable [256]byte

// NewCipherTable builds the table for ciphType. key1 and key2 are the low and
// high 32-bit halves of the title key and only matter for CipherKeyed.
func NewCipherTable(ciphType uint16, key1, key2 uint32) (*CipherTable, error) {
	t := &CipherTable{}
	switch ciphType {
	case CipherNone:
		for i := range t {
			t[i] = byte(i)
		}
	case CipherFixed:
		t.initFixed()
	case CipherKeyed:
		t.initKeyed(key1, key2)
	default:
		return nil, fmt.Errorf("%w: %#x", ErrUnsupportedCipherType, ciphType)
	}
	return t, nil
}

func (t *CipherTable) initFixed() {
	const mul = 13
	const add = 11
	v := 0
	for i := 1; i < 0xFF; i++ {
		v = (v*mul + add) & 0xFF
		if v == 0 || v == 0xFF {
			v = (v*mul + add) & 0xFF
		}
		t[i] = byte(v)
	}
	t[0] = 0
	t[0xFF] = 0xFF
}

func cipherKeyedNibbles(key byte) [16]byte {
	var r [16]byte
	mul := (key&1)<<3 | 5
	add := key&0xE | 1
	key >>= 4
	for i := range r {
		key = (key*mul + add) & 0xF
		r[i] = key
	}
	return r
}

func (t *CipherTable) initKeyed(key1, key2 uint32) {
	if key1 == 0 {
		key2--
	}
	key1--

	var kc [7]byte
	for i := range kc {
		kc[i] = byte(key1)
		key1 = key1>>8 | key2<<24
		key2 >>= 8
	}

	seed := [16]byte{
		kc[1], kc[1] ^ kc[6],
		kc[2] ^ kc[3], kc[2],
		kc[2] ^ kc[1], kc[3] ^ kc[4],
		kc[3], kc[3] ^ kc[2],
		kc[4] ^ kc[5], kc[4],
		kc[4] ^ kc[3], kc[5] ^ kc[6],
		kc[5], kc[5] ^ kc[4],
		kc[6] ^ kc[1], kc[6],
	}

	var base [256]byte
	rows := cipherKeyedNibbles(kc[0])
	for r := 0; r < 16; r++ {
		cols := cipherKeyedNibbles(seed[r])
		hi := rows[r] << 4
		for c := 0; c < 16; c++ {
			base[r*16+c] = hi | cols[c]
		}
	}

	pos := 1
	x := 0
	for i := 0; i < 256; i++ {
		x = (x + 0x11) & 0xFF
		if v := base[x]; v != 0 && v != 0xFF {
			t[pos] = v
			pos++
		}
	}
	t[0] = 0
	t[0xFF] = 0xFF
}

// Mask substitutes every byte of data in place.
func (t *CipherTable) Mask(data []byte) {
	for i, b := range data {
		data[i] = t[b]
	}
}
