package usm

import (
	"fmt"
	"os"

	"haruki-cutscenes/utils/cricodecs/utf"

	"github.com/bytedance/sonic"
	"github.com/iancoleman/orderedmap"
)

// Metadata is the content of the CRID chunk: one row for the container and
// one per embedded stream.
type Metadata struct {
	Rows []*orderedmap.OrderedMap
}

func parseMetadata(payload []byte) (*Metadata, error) {
	table, err := utf.Parse(payload)
	if err != nil {
		return nil, err
	}
	return &Metadata{Rows: table.Rows}, nil
}

// Filenames lists the "filename" column of every row.
func (m *Metadata) Filenames() []string {
	var names []string
	for _, row := range m.Rows {
		if v, ok := row.Get("filename"); ok {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}

func (m *Metadata) WriteJSON(path string) error {
	data, err := sonic.ConfigStd.MarshalIndent(m.Rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
