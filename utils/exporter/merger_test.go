package exporter

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(paths[i], []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func TestMKVMergeArgs(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "movie.ivf", "movie_2.wav", "movie_EN.ass", "ja-jp.ttf")
	out := filepath.Join(dir, "movie.mkv")

	m, err := NewMKVMerge(out, "")
	if err != nil {
		t.Fatalf("NewMKVMerge() error = %v", err)
	}
	if err := m.AddVideoTrack(files[0]); err != nil {
		t.Fatal(err)
	}
	if err := m.AddAudioTrack(files[1], 2); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSubtitlesTrack(files[2], "EN"); err != nil {
		t.Fatal(err)
	}
	if err := m.AddAttachment(files[3], "Japanese Font"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"-q", "-o", out,
		"--track-name", "0:movie", "--default-track", "0:0", "--forced-track", "0:0", "-d", "0", "-A", "-S", files[0],
		"--track-name", "0:Japanese", "--language", "0:jpn", "--default-track", "0:0", "--forced-track", "0:0", "-D", "-a", "0", "-S", files[1],
		"--track-name", "0:English", "--language", "0:eng", "--default-track", "0:0", "--forced-track", "0:0", "-D", "-A", "-s", "0", files[2],
		"--attachment-description", "Japanese Font", "--attach-file", files[3],
	}
	if got := m.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestMKVMergeErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewMKVMerge(filepath.Join(dir, "movie.mp4"), ""); err == nil {
		t.Error("NewMKVMerge(.mp4) error = nil, want error")
	}
	m, err := NewMKVMerge(filepath.Join(dir, "movie.mkv"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AddVideoTrack(filepath.Join(dir, "missing.ivf")); err == nil {
		t.Error("AddVideoTrack(missing) error = nil, want error")
	}
	audio := touch(t, dir, "movie_7.wav")[0]
	if err := m.AddAudioTrack(audio, 7); err == nil {
		t.Error("AddAudioTrack(channel 7) error = nil, want error")
	}
	if err := m.AddSubtitlesTrack(audio, "XX"); err == nil {
		t.Error("AddSubtitlesTrack(XX) error = nil, want error")
	}
}

func TestFFMPEGArgs(t *testing.T) {
	dir := t.TempDir()
	files := touch(t, dir, "movie.ivf", "movie_0.wav", "movie_1.wav", "movie_JP.ass", "zh-cn.ttf")
	out := filepath.Join(dir, "movie.mkv")

	f := NewFFMPEG(out, "", "", "")
	for _, step := range []error{
		f.AddVideoTrack(files[0]),
		f.AddAudioTrack(files[1], 0),
		f.AddAudioTrack(files[2], 1),
		f.AddSubtitlesTrack(files[3], "JP"),
		f.AddAttachment(files[4], "Chinese Font"),
	} {
		if step != nil {
			t.Fatal(step)
		}
	}

	want := []string{
		"-y", "-loglevel", "quiet", "-nostats",
		"-i", files[0], "-i", files[1], "-i", files[2], "-i", files[3], "-attach", files[4],
		"-map", "0", "-map", "1", "-map", "2", "-map", "3",
		"-metadata:s:v:0", "language=und", "-metadata:s:v:0", "title=movie",
		"-metadata:s:a:0", "language=chi", "-metadata:s:a:0", "title=Chinese",
		"-metadata:s:a:1", "language=eng", "-metadata:s:a:1", "title=English",
		"-metadata:s:s:0", "language=jpn", "-metadata:s:s:0", "title=Japanese",
		"-metadata:s:t:0", "mimetype=application/x-truetype-font", "-metadata:s:t:0", "description=Chinese Font",
		"-c", "copy", out,
	}
	if got := f.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestFFMPEGCodecs(t *testing.T) {
	dir := t.TempDir()
	video := touch(t, dir, "movie.ivf")[0]
	out := filepath.Join(dir, "movie.mkv")

	f := NewFFMPEG(out, "", "libopus", "")
	if err := f.AddVideoTrack(video); err != nil {
		t.Fatal(err)
	}
	got := f.Args()
	want := []string{"-c:a", "libopus", "-c:v", "copy", out}
	if !slices.Equal(got[len(got)-5:], want) {
		t.Errorf("Args() tail = %v, want %v", got[len(got)-5:], want)
	}
}

func TestNewMerger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "movie.mkv")
	tools := ToolPaths{FFMPEG: "/opt/ffmpeg", MKVMerge: "/opt/mkvmerge"}
	tests := []struct {
		engine     string
		audioCodec string
		wantFFMPEG bool
		wantErr    bool
	}{
		{engine: "", wantFFMPEG: false},
		{engine: EngineMKVMerge, wantFFMPEG: false},
		{engine: EngineFFMPEG, wantFFMPEG: true},
		{engine: EngineMKVMerge, audioCodec: "aac", wantFFMPEG: true},
		{engine: "gimkv", wantErr: true},
	}
	for _, tt := range tests {
		m, err := NewMerger(tt.engine, out, tools, tt.audioCodec, "")
		if (err != nil) != tt.wantErr {
			t.Errorf("NewMerger(%q) error = %v, wantErr %v", tt.engine, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		ff, isFFMPEG := m.(*FFMPEG)
		if isFFMPEG != tt.wantFFMPEG {
			t.Errorf("NewMerger(%q, %q) = %T", tt.engine, tt.audioCodec, m)
		}
		if isFFMPEG && ff.program != tools.FFMPEG {
			t.Errorf("ffmpeg program = %s, want %s", ff.program, tools.FFMPEG)
		}
	}
}
