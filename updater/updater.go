package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/go-resty/resty/v2"

	"haruki-cutscenes/config"
	"haruki-cutscenes/utils/keys"
	harukiLogger "haruki-cutscenes/utils/logger"
)

var logger = harukiLogger.NewLogger("KeyTableUpdater", "INFO", nil)

// KeyTableUpdater refreshes the local versions.json from an HTTP URL or a
// git repository.
type KeyTableUpdater struct {
	ctx        context.Context
	cfg        config.KeyTableConfig
	client     *resty.Client
	retryDelay time.Duration
}

func NewKeyTableUpdater(ctx context.Context, cfg config.KeyTableConfig, proxy string) *KeyTableUpdater {
	client := resty.New()
	client.
		SetRetryCount(0).
		SetTransport(&http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}).
		SetTimeout(time.Minute).
		SetHeader("Accept", "*/*").
		SetHeader("User-Agent", cfg.UserAgent)
	if proxy != "" {
		client.SetProxy(proxy)
	}
	return &KeyTableUpdater{
		ctx:        ctx,
		cfg:        cfg,
		client:     client,
		retryDelay: time.Second,
	}
}

func (u *KeyTableUpdater) request(url string) (*resty.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 4; attempt++ {
		resp, err := u.client.R().
			SetContext(u.ctx).
			Get(url)
		if err != nil {
			lastErr = err
			time.Sleep(u.retryDelay)
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("server error: %s", resp.Status())
			time.Sleep(u.retryDelay)
		} else {
			return resp, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("request failed after retries")
}

func (u *KeyTableUpdater) fetchHTTP() ([]byte, error) {
	resp, err := u.request(u.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.cfg.URL, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", u.cfg.URL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// fetchGit shallow-clones the repository into memory and reads the table
// from the head commit.
func (u *KeyTableUpdater) fetchGit() ([]byte, error) {
	opts := &git.CloneOptions{
		URL:   u.cfg.GitRepository,
		Depth: 1,
	}
	if u.cfg.GitBranch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(u.cfg.GitBranch)
		opts.SingleBranch = true
	}
	repo, err := git.CloneContext(u.ctx, memory.NewStorage(), nil, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", u.cfg.GitRepository, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}
	file, err := commit.File(u.cfg.GitPath)
	if err != nil {
		return nil, fmt.Errorf("%s not found in %s: %w", u.cfg.GitPath, u.cfg.GitRepository, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, err
	}
	logger.Debugf("Read %s from commit %s", u.cfg.GitPath, head.Hash())
	return []byte(contents), nil
}

func (u *KeyTableUpdater) Fetch() ([]byte, error) {
	switch u.cfg.Source {
	case config.KeySourceGit:
		return u.fetchGit()
	case config.KeySourceHTTP, "":
		return u.fetchHTTP()
	default:
		return nil, fmt.Errorf("unknown key table source %q", u.cfg.Source)
	}
}

// Update fetches the table, checks that it decodes and replaces the local
// copy. A table that does not decode leaves the local copy untouched.
func (u *KeyTableUpdater) Update() (*keys.Table, error) {
	logger.Infof("Updating key table from %s source...", u.cfg.Source)
	data, err := u.Fetch()
	if err != nil {
		return nil, err
	}
	table, err := keys.ParseTable(data)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(u.cfg.Path, data); err != nil {
		return nil, fmt.Errorf("failed to save key table: %w", err)
	}
	logger.Infof("Key table %s updated with %d videos", u.cfg.Path, table.Len())
	return table, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
