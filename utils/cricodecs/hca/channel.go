package hca

type channelType int

const (
	discrete channelType = iota
	stereoPrimary
	stereoSecondary
)

// stChannel is the decode state of one channel. wav2 and wav3 carry the
// overlap from one block to the next.
type stChannel struct {
	channelType channelType
	valueOffset int
	count       int

	block  [hcaSamplesPerSubframe]float32
	base   [hcaSamplesPerSubframe]float32
	value  [hcaSamplesPerSubframe]int8
	scale  [hcaSamplesPerSubframe]int8
	value2 [hcaSubframes]int8

	wav1 [hcaSamplesPerSubframe]float32
	wav2 [hcaSamplesPerSubframe]float32
	wav3 [hcaSamplesPerSubframe]float32
	wave [hcaSubframes][hcaSamplesPerSubframe]float32
}

// decodeScales reads the scale values of one block and derives the
// dequantization base of each coefficient.
func (ch *stChannel) decodeScales(br *BitCursor, intensityCount int, bias int, ath *[hcaSamplesPerSubframe]byte) {
	v := br.Take(3)
	switch {
	case v >= 6:
		for i := 0; i < ch.count; i++ {
			ch.value[i] = int8(br.Take(6))
		}
	case v != 0:
		v1 := br.Take(6)
		v2 := (1 << v) - 1
		v3 := v2 >> 1
		ch.value[0] = int8(v1)
		for i := 1; i < ch.count; i++ {
			v4 := br.Take(v)
			if v4 != v2 {
				v1 += v4 - v3
			} else {
				v1 = br.Take(6)
			}
			ch.value[i] = int8(v1)
		}
	default:
		ch.value = [hcaSamplesPerSubframe]int8{}
	}

	if ch.channelType == stereoSecondary {
		v = br.Peek(4)
		if v < 15 {
			for i := range ch.value2 {
				ch.value2[i] = int8(br.Take(4))
			}
		} else {
			for i := range ch.value2 {
				ch.value2[i] = 15
			}
		}
	} else {
		for i := 0; i < intensityCount; i++ {
			if j := ch.valueOffset + i; j < hcaSamplesPerSubframe {
				ch.value[j] = int8(br.Take(6))
			}
		}
	}

	for i := 0; i < ch.count; i++ {
		v = int(ch.value[i])
		if v != 0 {
			v = int(ath[i]) + ((bias + i) >> 8) - v*5/2 + 1
			switch {
			case v < 0:
				v = 15
			case v >= 0x39:
				v = 1
			default:
				v = int(scaleList[v])
			}
		}
		ch.scale[i] = int8(v)
	}
	for i := ch.count; i < hcaSamplesPerSubframe; i++ {
		ch.scale[i] = 0
	}

	for i := 0; i < ch.count; i++ {
		mul := float32(0)
		if v := ch.value[i]; v >= 0 && v < 64 {
			mul = valueFloat[v]
		}
		ch.base[i] = mul * scaleFloat[ch.scale[i]&0xF]
	}
}

// dequantize reads one subframe of coefficients.
func (ch *stChannel) dequantize(br *BitCursor) {
	for i := 0; i < ch.count; i++ {
		s := int(ch.scale[i] & 0xF)
		bits := codeBits[s]
		v := br.Take(bits)
		var f float32
		if s < 8 {
			v += s << 4
			br.Skip(codeLength[v] - bits)
			f = codeValue[v]
		} else {
			v = (1 - ((v & 1) << 1)) * (v / 2)
			if v == 0 {
				br.Skip(-1)
			}
			f = float32(v)
		}
		ch.block[i] = ch.base[i] * f
	}
	for i := ch.count; i < hcaSamplesPerSubframe; i++ {
		ch.block[i] = 0
	}
}

// reconstructIntensity fills the high band of a primary or discrete channel
// from its lower coefficients. The write and read positions carry over
// between bands.
func (ch *stChannel) reconstructIntensity(bands, bandWidth, start, end int) {
	if ch.channelType == stereoSecondary || bandWidth <= 0 {
		return
	}
	k := start
	l := start - 1
	for i := 0; i < bands; i++ {
		src := ch.valueOffset + i
		if src >= hcaSamplesPerSubframe {
			break
		}
		for j := 0; j < bandWidth && k < end && k < hcaSamplesPerSubframe; j++ {
			if l < 0 {
				break
			}
			idx := 64 + int(ch.value[src]) - int(ch.value[l])
			if idx < 0 {
				idx = 0
			} else if idx >= len(intensityFloat) {
				idx = len(intensityFloat) - 1
			}
			ch.block[k] = intensityFloat[idx] * ch.block[l]
			k++
			l--
		}
	}
	ch.block[hcaSamplesPerSubframe-1] = 0
}

// splitStereo moves part of a primary channel's energy into its paired
// secondary channel for one subframe.
func (ch *stChannel) splitStereo(subframe, count, start, stereoBands int, pair *stChannel) {
	if ch.channelType != stereoPrimary || stereoBands == 0 {
		return
	}
	f1 := pairScaleFloat[pair.value2[subframe]&0xF]
	f2 := f1 - 2
	for i := 0; i < count; i++ {
		j := start + i
		if j >= hcaSamplesPerSubframe {
			break
		}
		pair.block[j] = ch.block[j] * f2
		ch.block[j] = ch.block[j] * f1
	}
}

// synthesize runs the inverse transform and overlap-add for one subframe.
func (ch *stChannel) synthesize(subframe int) {
	bufs := [2]*[hcaSamplesPerSubframe]float32{&ch.block, &ch.wav1}
	active := 0

	for i, count1, count2 := 0, 1, 64; i < 7; i, count1, count2 = i+1, count1<<1, count2>>1 {
		s, d := bufs[active], bufs[active^1]
		si, d1, d2 := 0, 0, count2
		for j := 0; j < count1; j++ {
			for k := 0; k < count2; k++ {
				a := s[si]
				b := s[si+1]
				si += 2
				d[d1] = b + a
				d[d2] = a - b
				d1++
				d2++
			}
			d1 += count2
			d2 += count2
		}
		active ^= 1
	}

	for i, count1, count2 := 0, 64, 1; i < 7; i, count1, count2 = i+1, count1>>1, count2<<1 {
		s, d := bufs[active], bufs[active^1]
		cos, sin := cosineFloat[i], sineFloat[i]
		p1, p2 := 0, count2
		d1, d2 := 0, count2*2-1
		li := 0
		for j := 0; j < count1; j++ {
			for k := 0; k < count2; k++ {
				a := s[p1]
				b := s[p2]
				p1++
				p2++
				c := cos[li]
				p := sin[li]
				li++
				d[d1] = a*c - b*p
				d1++
				d[d2] = a*p + b*c
				d2--
			}
			p1 += count2
			p2 += count2
			d1 += count2
			d2 += count2 * 3
		}
		active ^= 1
	}
	ch.wav2 = *bufs[active]

	rise, fall := windowFloat[0], windowFloat[1]
	out := &ch.wave[subframe]
	for i := 0; i < 64; i++ {
		out[i] = ch.wav2[64+i]*rise[i] + ch.wav3[i]
		out[64+i] = fall[i]*ch.wav2[127-i] - ch.wav3[64+i]
	}
	for i := 0; i < 64; i++ {
		ch.wav3[i] = ch.wav2[63-i] * fall[63-i]
		ch.wav3[64+i] = rise[63-i] * ch.wav2[i]
	}
}
