package cloud

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"haruki-cutscenes/config"
	harukiLogger "haruki-cutscenes/utils/logger"
)

var logger = harukiLogger.NewLogger("HarukiCloudStorageUploader", "INFO", nil)

// Storage uploads a single local file to a remote path.
type Storage interface {
	Name() string
	Upload(ctx context.Context, localPath, remotePath string) error
}

// ExecStorage runs an external program per file. The arguments "src" and
// "dst" are replaced with the local and remote paths.
type ExecStorage struct {
	Base    string
	Program string
	Args    []string
}

func (s *ExecStorage) Name() string {
	return s.Base
}

func (s *ExecStorage) commandArgs(localPath, remotePath string) []string {
	args := make([]string, len(s.Args))
	copy(args, s.Args)
	for i, arg := range args {
		if arg == "src" {
			args[i] = localPath
		} else if arg == "dst" {
			args[i] = remotePath
		}
	}
	return args
}

func (s *ExecStorage) Upload(ctx context.Context, localPath, remotePath string) error {
	args := s.commandArgs(localPath, remotePath)
	logger.Debugf("Uploading %s to %s using command: %s %s",
		localPath, remotePath, s.Program, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, s.Program, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to upload %s to %s using command: %s %s: %w",
			localPath, remotePath, s.Program, strings.Join(args, " "), err)
	}
	return nil
}

// NewStorage builds the storage described by one remote_storages entry.
func NewStorage(cfg config.RemoteStorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageExec, "":
		if cfg.Program == "" {
			return nil, fmt.Errorf("exec storage %s has no program", cfg.Base)
		}
		return &ExecStorage{Base: cfg.Base, Program: cfg.Program, Args: cfg.Args}, nil
	case config.StorageS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

type target struct {
	base    string
	storage Storage
}

// Uploader sends exported files to every configured remote storage with a
// bounded number of uploads in flight.
type Uploader struct {
	targets   []target
	semaphore chan struct{}
}

func NewUploader(cfg *config.Config) (*Uploader, error) {
	concurrency := cfg.ConcurrentUploads
	if concurrency <= 0 {
		concurrency = 1
	}
	u := &Uploader{semaphore: make(chan struct{}, concurrency)}
	for _, sc := range cfg.RemoteStorages {
		s, err := NewStorage(sc)
		if err != nil {
			return nil, err
		}
		u.targets = append(u.targets, target{base: sc.Base, storage: s})
	}
	return u, nil
}

// AddStorage registers an extra target under base.
func (u *Uploader) AddStorage(base string, s Storage) {
	u.targets = append(u.targets, target{base: base, storage: s})
}

func (u *Uploader) Enabled() bool {
	return u != nil && len(u.targets) > 0
}

func remotePathFor(remoteBase, localBase, filePath string) (string, error) {
	relativePath, err := filepath.Rel(localBase, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path for %s: %w", filePath, err)
	}
	if strings.HasPrefix(relativePath, "..") {
		relativePath = filepath.Base(filePath)
	}
	return path.Join(remoteBase, filepath.ToSlash(relativePath)), nil
}

// uploadToStorage uploads files, laid out relative to localBase, to one
// target. The first failure is returned after every upload has finished.
func (u *Uploader) uploadToStorage(ctx context.Context, t target, files []string, localBase string) error {
	errChan := make(chan error, len(files))
	var wg sync.WaitGroup
	uploadFile := func(filePath string) {
		defer wg.Done()
		u.semaphore <- struct{}{}
		defer func() { <-u.semaphore }()
		remotePath, err := remotePathFor(t.base, localBase, filePath)
		if err != nil {
			errChan <- err
			return
		}
		if err := t.storage.Upload(ctx, filePath, remotePath); err != nil {
			logger.Errorf("Failed to upload %s to %s", filePath, remotePath)
			errChan <- err
			return
		}
		logger.Infof("Successfully uploaded %s to %s", filePath, remotePath)
	}
	for _, filePath := range files {
		wg.Add(1)
		go uploadFile(filePath)
	}
	wg.Wait()
	close(errChan)
	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}
	if len(errors) > 0 {
		return errors[0]
	}
	return nil
}

// UploadToAllStorages uploads files to every target in order. Local files
// are removed only once every target has them.
func (u *Uploader) UploadToAllStorages(ctx context.Context, files []string, localBase string, removeLocal bool) error {
	if !u.Enabled() {
		logger.Infof("No remote storages configured, skipping upload")
		return nil
	}
	for _, t := range u.targets {
		logger.Infof("Uploading to remote storage: %s", t.storage.Name())
		if err := u.uploadToStorage(ctx, t, files, localBase); err != nil {
			return fmt.Errorf("failed to upload to storage %s: %w", t.storage.Name(), err)
		}
		logger.Infof("Successfully uploaded all files to storage: %s", t.storage.Name())
	}
	if removeLocal {
		for _, filePath := range files {
			if err := os.Remove(filePath); err != nil {
				logger.Warnf("Failed to delete local file %s after upload: %v", filePath, err)
			} else {
				logger.Debugf("Deleted local file %s after successful upload", filePath)
			}
		}
	}
	logger.Infof("Successfully uploaded to all configured remote storages")
	return nil
}
