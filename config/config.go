package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type BackendConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	SSL                      bool   `yaml:"ssl"`
	SSLCert                  string `yaml:"ssl_cert"`
	SSLKey                   string `yaml:"ssl_key"`
	LogLevel                 string `yaml:"log_level"`
	MainLogFile              string `yaml:"main_log_file"`
	AccessLog                string `yaml:"access_log"`
	AccessLogPath            string `yaml:"access_log_path"`
	BodyLimit                int    `yaml:"body_limit,omitempty"`
	EnableAuthorization      bool   `yaml:"enable_authorization,omitempty"`
	AcceptUserAgentPrefix    string `yaml:"accept_user_agent_prefix,omitempty"`
	AcceptAuthorizationToken string `yaml:"accept_authorization_token,omitempty"`
}

type ToolConfig struct {
	FFMPEGPath   string `yaml:"ffmpeg_path,omitempty"`
	MKVMergePath string `yaml:"mkvmerge_path,omitempty"`
}

// Key table sources.
const (
	KeySourceHTTP = "http"
	KeySourceGit  = "git"
)

type KeyTableConfig struct {
	Path          string `yaml:"path"`
	Source        string `yaml:"source,omitempty"`
	URL           string `yaml:"url,omitempty"`
	GitRepository string `yaml:"git_repository,omitempty"`
	GitBranch     string `yaml:"git_branch,omitempty"`
	GitPath       string `yaml:"git_path,omitempty"`
	UserAgent     string `yaml:"user_agent,omitempty"`
}

type AttachmentConfig struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

type DemuxConfig struct {
	OutputDir          string             `yaml:"output_dir,omitempty"`
	AudioFormat        string             `yaml:"audio_format,omitempty"`
	SampleFormat       string             `yaml:"sample_format,omitempty"`
	Merge              bool               `yaml:"merge,omitempty"`
	Engine             string             `yaml:"engine,omitempty"`
	MergeAudioCodec    string             `yaml:"merge_audio_codec,omitempty"`
	MergeVideoCodec    string             `yaml:"merge_video_codec,omitempty"`
	AudioLanguages     []string           `yaml:"audio_languages,omitempty"`
	Subtitles          bool               `yaml:"subtitles,omitempty"`
	SubsFolder         string             `yaml:"subs_folder,omitempty"`
	Attachments        []AttachmentConfig `yaml:"attachments,omitempty"`
	NoCleanup          bool               `yaml:"no_cleanup,omitempty"`
	ExportDecryptedHCA bool               `yaml:"export_decrypted_hca,omitempty"`
	MaskAudio          bool               `yaml:"mask_audio,omitempty"`
	WriteMetadata      bool               `yaml:"write_metadata,omitempty"`
	Concurrency        int                `yaml:"concurrency,omitempty"`
	RecordFile         string             `yaml:"record_file,omitempty"`
	RemoveAfterUpload  bool               `yaml:"remove_after_upload,omitempty"`
}

// Remote storage types.
const (
	StorageExec = "exec"
	StorageS3   = "s3"
)

type RemoteStorageConfig struct {
	Type      string   `yaml:"type"`
	Base      string   `yaml:"base"`
	Program   string   `yaml:"program,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	Endpoint  string   `yaml:"endpoint,omitempty"`
	Region    string   `yaml:"region,omitempty"`
	Bucket    string   `yaml:"bucket,omitempty"`
	AccessKey string   `yaml:"access_key,omitempty"`
	SecretKey string   `yaml:"secret_key,omitempty"`
	PathStyle bool     `yaml:"path_style,omitempty"`
}

type Config struct {
	Proxy             string                `yaml:"proxy,omitempty"`
	ConcurrentUploads int                   `yaml:"concurrent_uploads,omitempty"`
	Backend           BackendConfig         `yaml:"backend,omitempty"`
	Tools             ToolConfig            `yaml:"tool,omitempty"`
	KeyTable          KeyTableConfig        `yaml:"key_table,omitempty"`
	Demux             DemuxConfig           `yaml:"demux,omitempty"`
	RemoteStorages    []RemoteStorageConfig `yaml:"remote_storages,omitempty"`
}

var Version = "v1.0.0-dev"

const (
	DefaultConfigFile  = "haruki-cutscenes-configs.yaml"
	DefaultKeyTableURL = "https://raw.githubusercontent.com/ToaHartor/GI-cutscenes/main/versions.json"
)

// Load reads the YAML file at path and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.ConcurrentUploads <= 0 {
		c.ConcurrentUploads = 4
	}
	if c.Backend.Host == "" {
		c.Backend.Host = "0.0.0.0"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8080
	}
	if c.Backend.LogLevel == "" {
		c.Backend.LogLevel = "INFO"
	}
	if c.Backend.BodyLimit <= 0 {
		c.Backend.BodyLimit = 4 * 1024 * 1024
	}
	if c.Tools.FFMPEGPath == "" {
		c.Tools.FFMPEGPath = "ffmpeg"
	}
	if c.Tools.MKVMergePath == "" {
		c.Tools.MKVMergePath = "mkvmerge"
	}
	if c.KeyTable.Path == "" {
		c.KeyTable.Path = "versions.json"
	}
	if c.KeyTable.Source == "" {
		c.KeyTable.Source = KeySourceHTTP
	}
	if c.KeyTable.URL == "" {
		c.KeyTable.URL = DefaultKeyTableURL
	}
	if c.KeyTable.GitPath == "" {
		c.KeyTable.GitPath = "versions.json"
	}
	if c.KeyTable.UserAgent == "" {
		c.KeyTable.UserAgent = "GICutscenes"
	}
	if c.Demux.OutputDir == "" {
		c.Demux.OutputDir = "output"
	}
	if c.Demux.Engine == "" {
		c.Demux.Engine = "mkvmerge"
	}
	if len(c.Demux.AudioLanguages) == 0 {
		c.Demux.AudioLanguages = []string{"chi", "eng", "jpn", "kor"}
	}
	if c.Demux.Concurrency <= 0 {
		c.Demux.Concurrency = 2
	}
	for i := range c.RemoteStorages {
		if c.RemoteStorages[i].Type == "" {
			c.RemoteStorages[i].Type = StorageExec
		}
	}
}

func (c *Config) Validate() error {
	switch c.KeyTable.Source {
	case KeySourceHTTP:
	case KeySourceGit:
		if c.KeyTable.GitRepository == "" {
			return fmt.Errorf("key_table.git_repository is required for the git source")
		}
	default:
		return fmt.Errorf("unknown key_table.source %q", c.KeyTable.Source)
	}
	for i, s := range c.RemoteStorages {
		switch s.Type {
		case StorageExec:
			if s.Program == "" {
				return fmt.Errorf("remote_storages[%d]: program is required for exec storage", i)
			}
		case StorageS3:
			if s.Bucket == "" {
				return fmt.Errorf("remote_storages[%d]: bucket is required for s3 storage", i)
			}
		default:
			return fmt.Errorf("remote_storages[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
