package keys

import (
	"fmt"
	"os"
	"slices"

	"github.com/bytedance/sonic"
)

// Group is a set of videos sharing a key inside one version entry.
type Group struct {
	Videos   []string `json:"videos"`
	Key      uint64   `json:"key"`
	EncAudio *bool    `json:"encAudio,omitempty"`
}

type Entry struct {
	Version     string   `json:"version"`
	Videos      []string `json:"videos,omitempty"`
	Key         uint64   `json:"key"`
	EncAudio    *bool    `json:"encAudio,omitempty"`
	VideoGroups []Group  `json:"videoGroups,omitempty"`
}

// Table is the decoded versions.json key table.
type Table struct {
	List []Entry `json:"list"`
}

func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := sonic.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyTableUnreadable, err)
	}
	if t.List == nil {
		return nil, fmt.Errorf("%w: missing list", ErrKeyTableUnreadable)
	}
	return &t, nil
}

func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyTableUnreadable, err)
	}
	return ParseTable(data)
}

// Lookup finds the table key for filename. The plain stem is tried first,
// then the alias shared by split intro files.
func (t *Table) Lookup(filename string) (uint64, bool, error) {
	stem := Stem(filename)
	if key, enc, ok := t.find(stem); ok {
		return key, enc, nil
	}
	if canonical := Canonical(filename); canonical != stem {
		if key, enc, ok := t.find(canonical); ok {
			return key, enc, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %s", ErrKeyNotFound, stem)
}

func (t *Table) find(stem string) (uint64, bool, bool) {
	for _, e := range t.List {
		if slices.Contains(e.Videos, stem) {
			return e.Key, deref(e.EncAudio), true
		}
		for _, g := range e.VideoGroups {
			if slices.Contains(g.Videos, stem) {
				return g.Key, deref(g.EncAudio), true
			}
		}
	}
	return 0, false, false
}

// Len counts the videos known to the table.
func (t *Table) Len() int {
	n := 0
	for _, e := range t.List {
		n += len(e.Videos)
		for _, g := range e.VideoGroups {
			n += len(g.Videos)
		}
	}
	return n
}

func deref(b *bool) bool {
	return b != nil && *b
}
