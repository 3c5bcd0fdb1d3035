// Package utf parses CRI "@UTF" tables, the typed row/column metadata
// blocks embedded in USM and ACB containers.
package utf

import (
	"bytes"
	"errors"
	"fmt"

	"haruki-cutscenes/utils"

	"github.com/iancoleman/orderedmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var ErrBadMagic = errors.New("utf: bad @UTF magic")

type Header struct {
	TableSize         uint32
	Version           uint16
	RowOffset         uint16
	StringTableOffset uint32
	DataOffset        uint32
	TableNameOffset   uint32
	NumberOfFields    uint16
	RowSize           uint16
	NumberOfRows      uint32
}

type Column struct {
	Name     string
	Storage  uint8
	Type     uint8
	Constant any
}

// Table is a decoded @UTF table. Rows keep the column order of the schema.
type Table struct {
	Header  Header
	Name    string
	Columns []Column
	Rows    []*orderedmap.OrderedMap

	limit int64
}

// Parse decodes the @UTF table at the start of data.
func Parse(data []byte) (*Table, error) {
	bs := utils.NewBinaryStream(bytes.NewReader(data), "big")

	sig, err := bs.ReadUInt32()
	if err != nil {
		return nil, fmt.Errorf("failed to read UTF magic: %w", err)
	}
	if sig != magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, sig)
	}

	var h Header
	fields := []any{
		&h.TableSize, &h.Version, &h.RowOffset, &h.StringTableOffset,
		&h.DataOffset, &h.TableNameOffset, &h.NumberOfFields, &h.RowSize, &h.NumberOfRows,
	}
	for _, f := range fields {
		switch v := f.(type) {
		case *uint16:
			*v, err = bs.ReadUInt16()
		case *uint32:
			*v, err = bs.ReadUInt32()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read UTF header: %w", err)
		}
	}
	if int64(h.TableSize)+prefixSize > int64(len(data)) {
		return nil, fmt.Errorf("utf: table size %d exceeds buffer of %d bytes", h.TableSize, len(data))
	}

	t := &Table{Header: h, limit: int64(len(data))}
	t.Name, err = t.readString(bs, h.TableNameOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to read table name: %w", err)
	}
	if err := t.readSchema(bs); err != nil {
		return nil, err
	}
	if err := t.readRows(bs); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) readSchema(bs *utils.BinaryStream) error {
	if err := bs.Seek(schemaStart); err != nil {
		return err
	}
	t.Columns = make([]Column, 0, t.Header.NumberOfFields)
	for i := 0; i < int(t.Header.NumberOfFields); i++ {
		flags, err := bs.ReadUChar()
		if err != nil {
			return fmt.Errorf("failed to read column %d flags: %w", i, err)
		}
		nameOffset, err := bs.ReadUInt32()
		if err != nil {
			return fmt.Errorf("failed to read column %d name offset: %w", i, err)
		}
		name, err := t.readString(bs, nameOffset)
		if err != nil {
			return fmt.Errorf("failed to read column %d name: %w", i, err)
		}
		col := Column{Name: name, Storage: flags & columnStorageMask, Type: flags & columnTypeMask}
		if col.Storage == columnStorageConstant || col.Storage == columnStorageConstant2 {
			col.Constant, err = t.readValue(bs, col.Type)
			if err != nil {
				return fmt.Errorf("failed to read constant %s: %w", name, err)
			}
		}
		t.Columns = append(t.Columns, col)
	}
	return nil
}

func (t *Table) readRows(bs *utils.BinaryStream) error {
	t.Rows = make([]*orderedmap.OrderedMap, 0, t.Header.NumberOfRows)
	for n := 0; n < int(t.Header.NumberOfRows); n++ {
		rowStart := int64(t.Header.RowOffset) + prefixSize + int64(n)*int64(t.Header.RowSize)
		if err := bs.Seek(rowStart); err != nil {
			return err
		}
		row := orderedmap.New()
		for _, col := range t.Columns {
			switch col.Storage {
			case columnStorageConstant, columnStorageConstant2:
				row.Set(col.Name, col.Constant)
			case columnStoragePerRow:
				val, err := t.readValue(bs, col.Type)
				if err != nil {
					return fmt.Errorf("failed to read row %d column %s: %w", n, col.Name, err)
				}
				row.Set(col.Name, val)
			default:
				row.Set(col.Name, nil)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

func (t *Table) readValue(bs *utils.BinaryStream, typ uint8) (any, error) {
	switch typ {
	case columnTypeData:
		offset, err := bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		size, err := bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		start := int64(t.Header.DataOffset) + prefixSize + int64(offset)
		if start+int64(size) > t.limit {
			return nil, fmt.Errorf("data column at %d+%d exceeds table", start, size)
		}
		return bs.ReadBytesAt(int(size), start)
	case columnTypeString:
		offset, err := bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		return t.readString(bs, offset)
	case columnTypeFloat:
		return bs.ReadFloat32()
	case columnType8Byte:
		return bs.ReadUInt64()
	case columnType4Byte2:
		return bs.ReadInt32()
	case columnType4Byte:
		return bs.ReadUInt32()
	case columnType2Byte2:
		return bs.ReadInt16()
	case columnType2Byte:
		return bs.ReadUInt16()
	case columnType1Byte2:
		return bs.ReadChar()
	case columnType1Byte:
		return bs.ReadUChar()
	default:
		return nil, fmt.Errorf("unknown column type: %d", typ)
	}
}

func (t *Table) readString(bs *utils.BinaryStream, offset uint32) (string, error) {
	raw, err := bs.ReadStringToNullAt(int64(t.Header.StringTableOffset) + prefixSize + int64(offset))
	if err != nil {
		return "", err
	}
	return DecodeShiftJIS(raw), nil
}

// DecodeShiftJIS falls back to the raw bytes when they are not valid Shift-JIS.
func DecodeShiftJIS(data []byte) string {
	result, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// Get returns a column of row n.
func (t *Table) Get(n int, column string) (any, bool) {
	if n < 0 || n >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[n].Get(column)
}

// String returns a string column of row n.
func (t *Table) String(n int, column string) (string, bool) {
	v, ok := t.Get(n, column)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
