package exporter

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"haruki-cutscenes/config"
	"haruki-cutscenes/utils/cricodecs/hca"
	"haruki-cutscenes/utils/keys"
)

const testTable = `{"list": [
  {"version": "3.0", "videos": ["Cs_Sumeru_AQ30161501_DT"], "key": 1234567890123456}
]}`

var fixtureDir = filepath.Join("..", "cricodecs", "hca", "testdata")

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fixtureDir, name))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func touchFixture(t *testing.T, dst string) {
	t.Helper()
	if err := os.WriteFile(dst, readFixture(t, "stereo.hca"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testKeySource(t *testing.T) KeySource {
	t.Helper()
	table, err := keys.ParseTable([]byte(testTable))
	if err != nil {
		t.Fatal(err)
	}
	return KeySource{Table: table}
}

// usmChunk builds one stream chunk with a 0x18 data offset.
func usmChunk(sig string, chno byte, payload []byte) []byte {
	const dataOffset = 0x18
	dataSize := dataOffset + len(payload)
	b := make([]byte, 8+dataSize)
	copy(b, sig)
	binary.BigEndian.PutUint32(b[4:], uint32(dataSize))
	b[9] = dataOffset
	b[12] = chno
	copy(b[0x20:], payload)
	return b
}

func writeUSM(t *testing.T, dir, name string) string {
	t.Helper()
	hcaData := readFixture(t, "stereo.hca")
	var stream bytes.Buffer
	stream.Write(usmChunk("@SFV", 0, bytes.Repeat([]byte{0x5A}, 0x280)))
	stream.Write(usmChunk("@SFA", 0, hcaData[:100]))
	stream.Write(usmChunk("@SFA", 0, hcaData[100:]))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, stream.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseSampleFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", hca.Mode16Bit, false},
		{"16", hca.Mode16Bit, false},
		{"8", hca.Mode8Bit, false},
		{"24", hca.Mode24Bit, false},
		{"32", hca.Mode32Bit, false},
		{"float", hca.ModeFloat, false},
		{"12", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSampleFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSampleFormat(%q) = %d, %v, want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestKeySource(t *testing.T) {
	ks := testKeySource(t)
	key, err := ks.ForContainer("videos/Cs_Sumeru_AQ30161501_DT.usm")
	if err != nil || key != 0x46649d6a09371 {
		t.Errorf("ForContainer() = %v, %v, want 0x46649d6a09371", key, err)
	}
	key, err = ks.ForHCA("out/Cs_Sumeru_AQ30161501_DT_2.hca")
	if err != nil || key != 0x46649d6a09371 {
		t.Errorf("ForHCA() = %v, %v, want 0x46649d6a09371", key, err)
	}
	key, err = ks.ForHCA("voice.hca")
	if err != nil || key != 0 {
		t.Errorf("ForHCA(voice.hca) = %v, %v, want zero key", key, err)
	}
	if _, err := ks.ForHCA("Unknown_0.hca"); !errors.Is(err, keys.ErrKeyNotFound) {
		t.Errorf("ForHCA(Unknown_0.hca) error = %v, want ErrKeyNotFound", err)
	}

	override := keys.Key(42)
	ks.Override = &override
	if key, _ := ks.ForContainer("Unknown.usm"); key != 42 {
		t.Errorf("ForContainer() with override = %v, want 42", key)
	}
}

func TestExportHCA(t *testing.T) {
	src := filepath.Join(t.TempDir(), "voice.hca")
	if err := os.WriteFile(src, readFixture(t, "stereo.hca"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	got, err := ExportHCAFile(context.Background(), src, Options{OutputDir: out, ExportDecryptedHCA: true}, KeySource{})
	if err != nil {
		t.Fatalf("ExportHCAFile() error = %v", err)
	}
	if got != filepath.Join(out, "voice.wav") {
		t.Errorf("ExportHCAFile() = %s, want voice.wav in %s", got, out)
	}
	wav, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	golden := readFixture(t, "stereo_golden.wav")
	if len(wav) != len(golden) || !bytes.Equal(wav[:hca.WaveHeaderSize], golden[:hca.WaveHeaderSize]) {
		t.Errorf("wav = %d bytes, want the %d byte golden layout", len(wav), len(golden))
	}

	decrypted, err := os.ReadFile(filepath.Join(out, "decrypted", "voice.hca"))
	if err != nil {
		t.Fatalf("decrypted copy: %v", err)
	}
	h, err := hca.ParseHeader(decrypted)
	if err != nil || h.CipherType != hca.CipherNone {
		t.Errorf("decrypted header = %+v, %v", h, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source was removed: %v", err)
	}
}

func TestExportHCAErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "movie_0.hca")
	if err := os.WriteFile(src, readFixture(t, "stereo.hca"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, err := ExportHCAFile(ctx, src, Options{OutputDir: dir}, KeySource{})
	if Classify(err) != KindKeyTableUnreadable {
		t.Errorf("no table: Classify(%v) = %s, want KeyTableUnreadable", err, Classify(err))
	}
	if _, err := ExportHCA(ctx, src, 0, Options{OutputDir: dir, SampleFormat: "12"}); err == nil {
		t.Error("sample format 12: error = nil, want error")
	}
	if _, err := ExportHCA(ctx, src, 0, Options{OutputDir: dir, AudioFormat: "aiff"}); err == nil {
		t.Error("audio format aiff: error = nil, want error")
	}

	bad := filepath.Join(dir, "broken.hca")
	if err := os.WriteFile(bad, []byte("not an hca stream at all, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ExportHCA(ctx, bad, 0, Options{OutputDir: dir})
	if Classify(err) != KindMalformedMagic {
		t.Errorf("broken: Classify(%v) = %s, want MalformedMagic", err, Classify(err))
	}
}

func TestExportUSM(t *testing.T) {
	src := writeUSM(t, t.TempDir(), "Cs_Sumeru_AQ30161501_DT.usm")
	out := t.TempDir()
	res, err := ExportUSM(context.Background(), src, Options{OutputDir: out}, testKeySource(t))
	if err != nil {
		t.Fatalf("ExportUSM() error = %v", err)
	}
	if res.Key != 0x46649d6a09371 {
		t.Errorf("Key = %v, want 0x46649d6a09371", res.Key)
	}
	wantOutputs := []string{
		filepath.Join(out, "Cs_Sumeru_AQ30161501_DT.ivf"),
		filepath.Join(out, "Cs_Sumeru_AQ30161501_DT_0.wav"),
	}
	if len(res.Outputs) != len(wantOutputs) {
		t.Fatalf("Outputs = %v, want %v", res.Outputs, wantOutputs)
	}
	for i, want := range wantOutputs {
		if res.Outputs[i] != want {
			t.Errorf("Outputs[%d] = %s, want %s", i, res.Outputs[i], want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("output %s: %v", want, err)
		}
	}
	if res.Merged != "" {
		t.Errorf("Merged = %s, want none", res.Merged)
	}
}

func TestExportUSMUnknownKey(t *testing.T) {
	src := writeUSM(t, t.TempDir(), "Unknown.usm")
	_, err := ExportUSM(context.Background(), src, Options{OutputDir: t.TempDir()}, testKeySource(t))
	if Classify(err) != KindKeyNotFound {
		t.Errorf("Classify(%v) = %s, want KeyNotFound", err, Classify(err))
	}
}

func TestExportUSMMergeCleansUp(t *testing.T) {
	program, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true binary to stand in for mkvmerge")
	}
	src := writeUSM(t, t.TempDir(), "Cs_Sumeru_AQ30161501_DT.usm")
	subs := t.TempDir()
	srt := filepath.Join(subs, "EN", "Cs_Sumeru_AQ30161501_DT_EN.srt")
	if err := os.MkdirAll(filepath.Dir(srt), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srt, []byte(sampleSRT), 0o644); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	opts := Options{
		OutputDir:  out,
		Merge:      true,
		Subtitles:  true,
		SubsFolder: subs,
		Tools:      ToolPaths{MKVMerge: program},
	}
	res, err := ExportUSM(context.Background(), src, opts, testKeySource(t))
	if err != nil {
		t.Fatalf("ExportUSM() error = %v", err)
	}
	if res.Merged != filepath.Join(out, "Cs_Sumeru_AQ30161501_DT.mkv") {
		t.Errorf("Merged = %s", res.Merged)
	}
	for _, name := range []string{
		"Cs_Sumeru_AQ30161501_DT.ivf",
		"Cs_Sumeru_AQ30161501_DT_0.hca",
		"Cs_Sumeru_AQ30161501_DT_0.wav",
		"Cs_Sumeru_AQ30161501_DT_EN.ass",
	} {
		if _, err := os.Stat(filepath.Join(out, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still present after cleanup: %v", name, err)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Demux.AudioFormat = "mp3"
	cfg.Demux.Attachments = []config.AttachmentConfig{{Path: "zh-cn.ttf", Description: "Chinese Font"}}
	opts := OptionsFromConfig(cfg)
	if opts.AudioFormat != "mp3" || opts.OutputDir != "output" || opts.Engine != EngineMKVMerge {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
	if opts.Tools.FFMPEG != "ffmpeg" || opts.Tools.MKVMerge != "mkvmerge" {
		t.Errorf("Tools = %+v", opts.Tools)
	}
	if len(opts.Attachments) != 1 || opts.Attachments[0].Description != "Chinese Font" {
		t.Errorf("Attachments = %+v", opts.Attachments)
	}
}
