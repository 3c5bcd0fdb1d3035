package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testTable = `{
  "list": [
    {"version": "3.0", "videos": ["Cs_Sumeru_AQ30161501_DT"], "key": 1234567890123456},
    {"version": "1.0", "videos": ["MDAQ001_OP"], "key": 0, "encAudio": true},
    {"version": "4.0", "key": 0, "videoGroups": [
      {"videos": ["Cs_4001_A", "Cs_4001_B"], "key": 72057594037927935, "encAudio": true}
    ]}
  ]
}`

func mustTable(t *testing.T) *Table {
	t.Helper()
	table, err := ParseTable([]byte(testTable))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	return table
}

func TestFilenameKey(t *testing.T) {
	tests := []struct {
		name string
		want uint64
	}{
		{"Cs_Sumeru_AQ30161501_DT.usm", 0x3749a15d8b1},
		{"MDAQ001_OP.usm", 0x21477e},
		{"MDAQ001_OPNew_Part1.usm", 0x21477e},
		{"MDAQ001_OPNew_Part2_PlayerBoy.usm", 0x21477e},
		{"MDAQ001_OPNew_Part2_PlayerGirl.usm", 0x21477e},
		{"", keySentinel},
		{".usm", keySentinel},
	}
	for _, tt := range tests {
		if got := FilenameKey(tt.name); got != tt.want {
			t.Errorf("FilenameKey(%q) = %#x, want %#x", tt.name, got, tt.want)
		}
	}
}

func TestDerive(t *testing.T) {
	table := mustTable(t)

	key, enc, err := Derive("videos/Cs_Sumeru_AQ30161501_DT.usm", table)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if key != 0x46649d6a09371 {
		t.Errorf("Derive() = %v, want 0x00046649D6A09371", key)
	}
	if enc {
		t.Errorf("encAudio = true, want false")
	}
	k1, k2 := key.Split()
	if k1 != 0xd6a09371 || k2 != 0x46649 {
		t.Errorf("Split() = %#x, %#x, want 0xd6a09371, 0x46649", k1, k2)
	}

	again, _, _ := Derive("videos/Cs_Sumeru_AQ30161501_DT.usm", table)
	if again != key {
		t.Errorf("second Derive() = %v, want %v", again, key)
	}
}

func TestDeriveAliasAndGroups(t *testing.T) {
	table := mustTable(t)

	intro, enc, err := Derive("MDAQ001_OPNew_Part2_PlayerGirl.usm", table)
	if err != nil {
		t.Fatalf("Derive(intro) error = %v", err)
	}
	if intro != 0x21477e || !enc {
		t.Errorf("Derive(intro) = %v, %v, want 0x21477E, true", intro, enc)
	}

	grouped, enc, err := Derive("Cs_4001_B.usm", table)
	if err != nil {
		t.Fatalf("Derive(group) error = %v", err)
	}
	want := Combine(FilenameKey("Cs_4001_B.usm"), 0xFFFFFFFFFFFFFF)
	if grouped != want || !enc {
		t.Errorf("Derive(group) = %v, %v, want %v, true", grouped, enc, want)
	}
}

func TestDeriveErrors(t *testing.T) {
	if _, _, err := Derive("Unknown.usm", mustTable(t)); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Derive(unknown) error = %v, want ErrKeyNotFound", err)
	}
	if _, _, err := Derive("a.usm", nil); !errors.Is(err, ErrKeyTableUnreadable) {
		t.Errorf("Derive(nil table) error = %v, want ErrKeyTableUnreadable", err)
	}
	for _, bad := range []string{`{`, `{"list": "x"}`, `{}`} {
		if _, err := ParseTable([]byte(bad)); !errors.Is(err, ErrKeyTableUnreadable) {
			t.Errorf("ParseTable(%q) error = %v, want ErrKeyTableUnreadable", bad, err)
		}
	}
	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, ErrKeyTableUnreadable) {
		t.Errorf("LoadTable(missing) error = %v, want ErrKeyTableUnreadable", err)
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.json")
	if err := os.WriteFile(path, []byte(testTable), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	if got := table.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestCombineSentinel(t *testing.T) {
	if got := Combine(0x80000000000000, 0x80000000000000); got != keySentinel {
		t.Errorf("Combine() = %v, want sentinel", got)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"0x46649D6A09371", 0x46649d6a09371, false},
		{"1234", 1234, false},
		{" 0X10 ", 16, false},
		{"", 0, true},
		{"0xZZ", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrInvalidKey", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromHalves(t *testing.T) {
	key, err := FromHalves("7193A0D6", "49660400")
	if err != nil {
		t.Fatalf("FromHalves() error = %v", err)
	}
	if key != 0x46649d6a09371 {
		t.Errorf("FromHalves() = %v, want 0x00046649D6A09371", key)
	}
	b1, b2 := key.Bytes()
	if b1 != [4]byte{0x71, 0x93, 0xa0, 0xd6} || b2 != [4]byte{0x49, 0x66, 0x04, 0x00} {
		t.Errorf("Bytes() = % x, % x", b1, b2)
	}
	for _, bad := range [][2]string{{"1234", "00000000"}, {"0000000G", "00000000"}} {
		if _, err := FromHalves(bad[0], bad[1]); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("FromHalves(%q, %q) error = %v, want ErrInvalidKey", bad[0], bad[1], err)
		}
	}
}

func TestContainerNameForHCA(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"out/Cs_Sumeru_AQ30161501_DT_0.hca", "Cs_Sumeru_AQ30161501_DT.usm", true},
		{"Cs_A_3.hca", "Cs_A.usm", true},
		{"Cs_A_4.hca", "", false},
		{"Cs_A.hca", "", false},
	}
	for _, tt := range tests {
		got, ok := ContainerNameForHCA(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ContainerNameForHCA(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
