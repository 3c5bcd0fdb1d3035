// Package keys derives the per-title 64-bit key that unlocks cutscene
// containers and the HCA streams they carry.
package keys

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

var (
	ErrKeyNotFound        = errors.New("keys: no key table entry for file")
	ErrKeyTableUnreadable = errors.New("keys: key table is unreadable")
	ErrInvalidKey         = errors.New("keys: invalid key")
)

const (
	keyMask     = 0xFFFFFFFFFFFFFF
	keySentinel = 0x100000000000000
)

// Intro cutscenes split across several files share one filename key.
var aliases = map[string]string{
	"MDAQ001_OPNew_Part1.usm":            "MDAQ001_OP",
	"MDAQ001_OPNew_Part2_PlayerBoy.usm":  "MDAQ001_OP",
	"MDAQ001_OPNew_Part2_PlayerGirl.usm": "MDAQ001_OP",
}

var hcaStemPattern = regexp2.MustCompile(`^(.*?)_[0-3]\.hca$`, regexp2.IgnoreCase)

// Key is the 56-bit (or sentinel) value combining the filename hash with
// the key table entry.
type Key uint64

// Split returns the little-endian halves fed to the container masks and
// to the HCA keyed cipher.
func (k Key) Split() (key1, key2 uint32) {
	return uint32(k), uint32(k >> 32)
}

// Bytes returns the two halves as 4-byte little-endian arrays.
func (k Key) Bytes() (key1, key2 [4]byte) {
	binary.LittleEndian.PutUint32(key1[:], uint32(k))
	binary.LittleEndian.PutUint32(key2[:], uint32(k>>32))
	return
}

func (k Key) String() string {
	return fmt.Sprintf("0x%016X", uint64(k))
}

// Stem strips directories and everything from the first dot.
func Stem(filename string) string {
	base := filepath.Base(filename)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// Canonical returns the string hashed into the filename key.
func Canonical(filename string) string {
	base := filepath.Base(filename)
	if alias, ok := aliases[base]; ok {
		return alias
	}
	return Stem(base)
}

// FilenameKey hashes the canonical stem of filename.
func FilenameKey(filename string) uint64 {
	var sum uint64
	for _, c := range Canonical(filename) {
		sum = uint64(c) + 3*sum
	}
	sum &= keyMask
	if sum == 0 {
		return keySentinel
	}
	return sum
}

// Combine adds the filename key and the table key.
func Combine(key1, key2 uint64) Key {
	final := (key1 + key2) & keyMask
	if final == 0 {
		return keySentinel
	}
	return Key(final)
}

// Derive computes the key of a container from its filename and the key table.
func Derive(filename string, table *Table) (Key, bool, error) {
	if table == nil {
		return 0, false, ErrKeyTableUnreadable
	}
	entryKey, encAudio, err := table.Lookup(filename)
	if err != nil {
		return 0, false, err
	}
	return Combine(FilenameKey(filename), entryKey), encAudio, nil
}

// ContainerNameForHCA maps "<base>_<n>.hca" back to "<base>.usm".
func ContainerNameForHCA(hcaPath string) (string, bool) {
	m, err := hcaStemPattern.FindStringMatch(filepath.Base(hcaPath))
	if err != nil || m == nil {
		return "", false
	}
	return m.GroupByNumber(1).String() + ".usm", true
}

// ParseKey accepts "0x"-prefixed hexadecimal or decimal.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	return Key(v), nil
}

// FromHalves builds a key from two 8-digit hex strings holding the key
// bytes in stream order.
func FromHalves(a, b string) (Key, error) {
	ha, err := parseHalf(a)
	if err != nil {
		return 0, err
	}
	hb, err := parseHalf(b)
	if err != nil {
		return 0, err
	}
	return Key(uint64(ha) | uint64(hb)<<32), nil
}

func parseHalf(s string) (uint32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("%w: half %q must be 8 hex digits", ErrInvalidKey, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: half %q: %v", ErrInvalidKey, s, err)
	}
	return binary.LittleEndian.Uint32(raw), nil
}
