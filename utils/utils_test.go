package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.usm", "a.USM", "c.hca", filepath.Join("sub", "d.usm")} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := FindFilesByExtension(dir, ".usm")
	if err != nil {
		t.Fatalf("FindFilesByExtension() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.USM"),
		filepath.Join(dir, "b.usm"),
		filepath.Join(dir, "sub", "d.usm"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	single, err := ExpandInputs(filepath.Join(dir, "c.hca"), ".usm")
	if err != nil || len(single) != 1 {
		t.Errorf("ExpandInputs(file) = %v, %v, want the file itself", single, err)
	}
	if _, err := ExpandInputs(filepath.Join(dir, "missing"), ".usm"); err == nil {
		t.Errorf("ExpandInputs(missing) error = nil, want error")
	}
}

func TestFileBase(t *testing.T) {
	if got := FileBase(filepath.Join("x", "Cs_A_0.hca")); got != "Cs_A_0" {
		t.Errorf("FileBase() = %q, want Cs_A_0", got)
	}
}

func TestLanguages(t *testing.T) {
	tests := []struct {
		channel int
		codes   []string
		want    bool
	}{
		{0, DefaultAudioLanguages, true},
		{3, []string{"kor"}, true},
		{2, []string{"chi", "eng"}, false},
		{4, DefaultAudioLanguages, false},
		{-1, DefaultAudioLanguages, false},
	}
	for _, tt := range tests {
		if got := WantAudioChannel(tt.channel, tt.codes); got != tt.want {
			t.Errorf("WantAudioChannel(%d, %v) = %v, want %v", tt.channel, tt.codes, got, tt.want)
		}
	}
	if lang, err := ParseSubtitleLanguage("JP"); err != nil || lang.Code != "jpn" {
		t.Errorf("ParseSubtitleLanguage(JP) = %+v, %v", lang, err)
	}
	if _, err := ParseSubtitleLanguage("XX"); err == nil {
		t.Errorf("ParseSubtitleLanguage(XX) error = nil, want error")
	}
}
