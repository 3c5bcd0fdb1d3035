package utf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type testColumn struct {
	name  string
	flags byte
	value any
}

// buildTable lays out a @UTF table: schema, rows, strings, then data.
// rows hold values for the per-row columns only, in column order.
func buildTable(name string, cols []testColumn, rows [][]any) []byte {
	var strs, blobs bytes.Buffer
	strOff := map[string]uint32{}
	addStr := func(s string) uint32 {
		if o, ok := strOff[s]; ok {
			return o
		}
		o := uint32(strs.Len())
		strs.WriteString(s)
		strs.WriteByte(0)
		strOff[s] = o
		return o
	}
	encode := func(w *bytes.Buffer, typ byte, v any) {
		switch typ {
		case columnTypeString:
			_ = binary.Write(w, binary.BigEndian, addStr(v.(string)))
		case columnTypeData:
			b := v.([]byte)
			_ = binary.Write(w, binary.BigEndian, uint32(blobs.Len()))
			_ = binary.Write(w, binary.BigEndian, uint32(len(b)))
			blobs.Write(b)
		default:
			_ = binary.Write(w, binary.BigEndian, v)
		}
	}

	addStr("<NULL>")
	nameOff := addStr(name)

	var schema bytes.Buffer
	var perRow []byte
	for _, c := range cols {
		schema.WriteByte(c.flags)
		_ = binary.Write(&schema, binary.BigEndian, addStr(c.name))
		switch c.flags & columnStorageMask {
		case columnStorageConstant, columnStorageConstant2:
			encode(&schema, c.flags&columnTypeMask, c.value)
		case columnStoragePerRow:
			perRow = append(perRow, c.flags&columnTypeMask)
		}
	}

	var rowBuf bytes.Buffer
	rowSize := 0
	for _, r := range rows {
		start := rowBuf.Len()
		for j, v := range r {
			encode(&rowBuf, perRow[j], v)
		}
		rowSize = rowBuf.Len() - start
	}

	rowOffset := 24 + schema.Len()
	stringOffset := rowOffset + rowBuf.Len()
	dataOffset := stringOffset + strs.Len()
	tableSize := dataOffset + blobs.Len()

	var out bytes.Buffer
	be := func(v any) { _ = binary.Write(&out, binary.BigEndian, v) }
	out.WriteString("@UTF")
	be(uint32(tableSize))
	be(uint16(1))
	be(uint16(rowOffset))
	be(uint32(stringOffset))
	be(uint32(dataOffset))
	be(nameOff)
	be(uint16(len(cols)))
	be(uint16(rowSize))
	be(uint32(len(rows)))
	out.Write(schema.Bytes())
	out.Write(rowBuf.Bytes())
	out.Write(strs.Bytes())
	out.Write(blobs.Bytes())
	return out.Bytes()
}

func TestParse(t *testing.T) {
	data := buildTable("CRIUSF_DIR_STREAM",
		[]testColumn{
			{name: "fmtver", flags: columnStorageConstant | columnType4Byte, value: uint32(0x01000000)},
			{name: "filename", flags: columnStoragePerRow | columnTypeString},
			{name: "filesize", flags: columnStoragePerRow | columnType4Byte},
			{name: "chno", flags: columnStoragePerRow | columnType2Byte2},
			{name: "minchk", flags: columnStorageZero | columnType1Byte},
			{name: "gain", flags: columnStorageConstant2 | columnTypeFloat, value: float32(0.5)},
			{name: "blob", flags: columnStoragePerRow | columnTypeData},
		},
		[][]any{
			{"\x83\x65\x83\x58\x83\x67.usm", uint32(1024), int16(-1), []byte{0xCA, 0xFE}},
			{"video.ivf", uint32(512), int16(0), []byte{0x01}},
		},
	)

	table, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.Name != "CRIUSF_DIR_STREAM" {
		t.Errorf("Name = %q, want CRIUSF_DIR_STREAM", table.Name)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}

	if got, _ := table.String(0, "filename"); got != "テスト.usm" {
		t.Errorf("row 0 filename = %q, want テスト.usm", got)
	}
	if got, _ := table.String(1, "filename"); got != "video.ivf" {
		t.Errorf("row 1 filename = %q, want video.ivf", got)
	}
	if got, _ := table.Get(0, "filesize"); got != uint32(1024) {
		t.Errorf("row 0 filesize = %v, want 1024", got)
	}
	if got, _ := table.Get(0, "chno"); got != int16(-1) {
		t.Errorf("row 0 chno = %v, want -1", got)
	}
	if got, _ := table.Get(1, "fmtver"); got != uint32(0x01000000) {
		t.Errorf("row 1 fmtver = %v, want 0x01000000", got)
	}
	if got, _ := table.Get(1, "gain"); got != float32(0.5) {
		t.Errorf("row 1 gain = %v, want 0.5", got)
	}
	if got, ok := table.Get(0, "minchk"); !ok || got != nil {
		t.Errorf("row 0 minchk = %v, %v, want nil, true", got, ok)
	}
	if got, _ := table.Get(0, "blob"); !bytes.Equal(got.([]byte), []byte{0xCA, 0xFE}) {
		t.Errorf("row 0 blob = % x, want ca fe", got)
	}

	keys := table.Rows[0].Keys()
	want := []string{"fmtver", "filename", "filesize", "chno", "minchk", "gain", "blob"}
	if len(keys) != len(want) {
		t.Fatalf("row keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("row key %d = %q, want %q", i, keys[i], want[i])
		}
	}

	if _, ok := table.Get(5, "filename"); ok {
		t.Errorf("Get(5) ok = true, want false")
	}
}

func TestParseErrors(t *testing.T) {
	good := buildTable("T", []testColumn{{name: "a", flags: columnStoragePerRow | columnType4Byte}}, [][]any{{uint32(7)}})

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "@UTG")
	if _, err := Parse(badMagic); !errors.Is(err, ErrBadMagic) {
		t.Errorf("Parse(bad magic) error = %v, want ErrBadMagic", err)
	}
	if _, err := Parse(good[:20]); err == nil {
		t.Errorf("Parse(truncated header) error = nil, want error")
	}
	if _, err := Parse(good[:len(good)-4]); err == nil {
		t.Errorf("Parse(truncated body) error = nil, want error")
	}

	unknown := buildTable("T", []testColumn{{name: "a", flags: columnStoragePerRow | 0x0C}}, [][]any{{}})
	if _, err := Parse(unknown); err == nil {
		t.Errorf("Parse(unknown type) error = nil, want error")
	}
}

func TestDecodeShiftJIS(t *testing.T) {
	if got := DecodeShiftJIS([]byte("plain")); got != "plain" {
		t.Errorf("DecodeShiftJIS(plain) = %q", got)
	}
	if got := DecodeShiftJIS([]byte{0x83, 0x65}); got != "テ" {
		t.Errorf("DecodeShiftJIS(sjis) = %q, want テ", got)
	}
}
