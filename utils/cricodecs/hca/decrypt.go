package hca

import (
	"bufio"
	"io"
	"os"
)

// WriteDecrypted writes the stream with its cipher removed: the header's
// cipher type becomes none and every block is unmasked with a fresh checksum.
func (d *Decoder) WriteDecrypted(out io.Writer) error {
	bw := bufio.NewWriter(out)
	if _, err := bw.Write(d.header.DecryptedBytes()); err != nil {
		return err
	}
	if d.header.CipherType == CipherNone {
		if _, err := bw.Write(d.data); err != nil {
			return err
		}
		return bw.Flush()
	}
	size := int(d.header.BlockSize)
	block := make([]byte, size)
	for b := 0; b < int(d.header.BlockCount); b++ {
		copy(block, d.data[b*size:(b+1)*size])
		d.cipher.Mask(block)
		putChecksum(block)
		if _, err := bw.Write(block); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecryptFile writes the decrypted form of src to dst.
func DecryptFile(src, dst string, key1, key2 uint32) error {
	d, err := NewDecoderFromFile(src, key1, key2)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err = d.WriteDecrypted(f); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}
