package cloud

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"

	"haruki-cutscenes/config"
)

type recordingStorage struct {
	mu    sync.Mutex
	calls []string
	fail  string
}

func (s *recordingStorage) Name() string {
	return "recording"
}

func (s *recordingStorage) Upload(ctx context.Context, localPath, remotePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filepath.Base(localPath) == s.fail {
		return errors.New("upload refused")
	}
	s.calls = append(s.calls, remotePath)
	return nil
}

func TestExecStorageArgs(t *testing.T) {
	s := &ExecStorage{Base: "remote:", Program: "rclone", Args: []string{"copyto", "src", "dst", "--progress"}}
	got := s.commandArgs("/out/a.mkv", "remote:cutscenes/a.mkv")
	want := []string{"copyto", "/out/a.mkv", "remote:cutscenes/a.mkv", "--progress"}
	if !slices.Equal(got, want) {
		t.Errorf("commandArgs() = %v, want %v", got, want)
	}
	if s.Args[1] != "src" {
		t.Errorf("template modified: %v", s.Args)
	}
}

func TestRemotePathFor(t *testing.T) {
	local := filepath.Join("out", "videos")
	tests := []struct {
		file string
		want string
	}{
		{filepath.Join(local, "a.mkv"), "cutscenes/a.mkv"},
		{filepath.Join(local, "sub", "b.mkv"), "cutscenes/sub/b.mkv"},
		{filepath.Join("elsewhere", "c.mkv"), "cutscenes/c.mkv"},
	}
	for _, tt := range tests {
		got, err := remotePathFor("cutscenes", local, tt.file)
		if err != nil || got != tt.want {
			t.Errorf("remotePathFor(%s) = %s, %v, want %s", tt.file, got, err, tt.want)
		}
	}
}

func TestNewStorage(t *testing.T) {
	tests := []struct {
		cfg     config.RemoteStorageConfig
		wantErr bool
	}{
		{config.RemoteStorageConfig{Type: config.StorageExec, Base: "r:", Program: "rclone"}, false},
		{config.RemoteStorageConfig{Type: config.StorageExec, Base: "r:"}, true},
		{config.RemoteStorageConfig{Type: config.StorageS3, Base: "videos", Bucket: "assets", Endpoint: "http://127.0.0.1:9000", PathStyle: true}, false},
		{config.RemoteStorageConfig{Type: config.StorageS3, Base: "videos"}, true},
		{config.RemoteStorageConfig{Type: "ftp"}, true},
	}
	for _, tt := range tests {
		_, err := NewStorage(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewStorage(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}

	s, err := NewS3Storage(config.RemoteStorageConfig{Base: "/videos", Bucket: "assets", AccessKey: "ak", SecretKey: "sk"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "s3://assets/videos" {
		t.Errorf("Name() = %s, want s3://assets/videos", s.Name())
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.mkv":  "video/x-matroska",
		"a.hca":  "audio/x-hca",
		"a.json": "application/json",
		"a.zzz9": "application/octet-stream",
	}
	for file, want := range tests {
		if got := contentType(file); got != want {
			t.Errorf("contentType(%s) = %s, want %s", file, got, want)
		}
	}
}

func TestUploadToAllStorages(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.mkv", "b.mkv"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}

	u, err := NewUploader(&config.Config{ConcurrentUploads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if u.Enabled() {
		t.Fatal("Enabled() = true without storages")
	}
	first, second := &recordingStorage{}, &recordingStorage{}
	u.AddStorage("one", first)
	u.AddStorage("two", second)

	if err := u.UploadToAllStorages(context.Background(), files, dir, true); err != nil {
		t.Fatalf("UploadToAllStorages() error = %v", err)
	}
	sort.Strings(first.calls)
	if !slices.Equal(first.calls, []string{"one/a.mkv", "one/b.mkv"}) || len(second.calls) != 2 {
		t.Errorf("calls = %v, %v", first.calls, second.calls)
	}
	for _, f := range files {
		if _, err := os.Stat(f); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s kept after upload: %v", f, err)
		}
	}
}

func TestUploadFailureKeepsLocal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(file, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	u, _ := NewUploader(&config.Config{})
	u.AddStorage("one", &recordingStorage{fail: "a.mkv"})
	if err := u.UploadToAllStorages(context.Background(), []string{file}, dir, true); err == nil {
		t.Error("UploadToAllStorages() error = nil, want error")
	}
	if _, err := os.Stat(file); err != nil {
		t.Errorf("local file removed after failed upload: %v", err)
	}
}
