package utf

// Column storage flags
const (
	columnStorageMask      = 0xF0
	columnStoragePerRow    = 0x50
	columnStorageConstant  = 0x30
	columnStorageConstant2 = 0x70
	columnStorageZero      = 0x10
)

// Column value types
const (
	columnTypeMask   = 0x0F
	columnTypeData   = 0x0B
	columnTypeString = 0x0A
	columnTypeFloat  = 0x08
	columnType8Byte  = 0x06
	columnType4Byte2 = 0x05
	columnType4Byte  = 0x04
	columnType2Byte2 = 0x03
	columnType2Byte  = 0x02
	columnType1Byte2 = 0x01
	columnType1Byte  = 0x00
)

// Offsets stored in the table count from the end of the 8-byte
// magic+size prefix.
const (
	magic       = 0x40555446
	prefixSize  = 8
	schemaStart = 0x20
)
