package exporter

import (
	"fmt"
	"path/filepath"

	"haruki-cutscenes/config"
	"haruki-cutscenes/utils/cricodecs/hca"
	"haruki-cutscenes/utils/keys"
	harukiLogger "haruki-cutscenes/utils/logger"
)

var logger = harukiLogger.NewLogger("CutsceneExporter", "INFO", nil)

type ToolPaths struct {
	FFMPEG   string
	MKVMerge string
}

// Attachment is a font embedded into merged Matroska files.
type Attachment struct {
	Path        string
	Description string
}

// DefaultAttachments are the fonts looked up next to the subtitles.
func DefaultAttachments(subsFolder string) []Attachment {
	return []Attachment{
		{Path: filepath.Join(subsFolder, "ja-jp.ttf"), Description: "Japanese Font"},
		{Path: filepath.Join(subsFolder, "zh-cn.ttf"), Description: "Chinese Font"},
	}
}

type Options struct {
	OutputDir   string
	AudioFormat string

	// SampleFormat is one of "8", "16", "24", "32" or "float". Empty means 16.
	SampleFormat string

	// ExportDecryptedHCA also writes cipher-free copies under <out>/decrypted.
	ExportDecryptedHCA bool
	MaskAudio          bool
	WriteMetadata      bool

	Merge           bool
	Engine          string
	MergeAudioCodec string
	MergeVideoCodec string
	AudioLanguages  []string
	Subtitles       bool
	SubsFolder      string
	Attachments     []Attachment
	NoCleanup       bool

	Tools ToolPaths
}

// OptionsFromConfig maps the demux section of cfg onto export options.
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Demux
	opts := Options{
		OutputDir:          d.OutputDir,
		AudioFormat:        d.AudioFormat,
		SampleFormat:       d.SampleFormat,
		ExportDecryptedHCA: d.ExportDecryptedHCA,
		MaskAudio:          d.MaskAudio,
		WriteMetadata:      d.WriteMetadata,
		Merge:              d.Merge,
		Engine:             d.Engine,
		MergeAudioCodec:    d.MergeAudioCodec,
		MergeVideoCodec:    d.MergeVideoCodec,
		AudioLanguages:     d.AudioLanguages,
		Subtitles:          d.Subtitles,
		SubsFolder:         d.SubsFolder,
		NoCleanup:          d.NoCleanup,
		Tools: ToolPaths{
			FFMPEG:   cfg.Tools.FFMPEGPath,
			MKVMerge: cfg.Tools.MKVMergePath,
		},
	}
	for _, a := range d.Attachments {
		opts.Attachments = append(opts.Attachments, Attachment{Path: a.Path, Description: a.Description})
	}
	return opts
}

func (o Options) outputDir(input string) string {
	if o.OutputDir != "" {
		return o.OutputDir
	}
	return filepath.Dir(input)
}

// ParseSampleFormat maps a sample format name to an hca output mode.
func ParseSampleFormat(s string) (int, error) {
	switch s {
	case "", "16":
		return hca.Mode16Bit, nil
	case "8":
		return hca.Mode8Bit, nil
	case "24":
		return hca.Mode24Bit, nil
	case "32":
		return hca.Mode32Bit, nil
	case "float":
		return hca.ModeFloat, nil
	default:
		return 0, fmt.Errorf("invalid sample format: %s", s)
	}
}

// KeySource resolves the key of a container or of an extracted HCA stream.
type KeySource struct {
	Table    *keys.Table
	Override *keys.Key
}

func (s KeySource) ForContainer(path string) (keys.Key, error) {
	if s.Override != nil {
		return *s.Override, nil
	}
	key, _, err := keys.Derive(filepath.Base(path), s.Table)
	if err != nil {
		return 0, err
	}
	return key, nil
}

// ForHCA derives the key from the container name encoded in
// "<base>_<n>.hca". Files named otherwise get a zero key, which is enough
// for unencrypted and fixed-cipher streams.
func (s KeySource) ForHCA(path string) (keys.Key, error) {
	if s.Override != nil {
		return *s.Override, nil
	}
	container, ok := keys.ContainerNameForHCA(path)
	if !ok {
		logger.Debugf("%s does not follow <name>_<n>.hca, using a zero key", filepath.Base(path))
		return 0, nil
	}
	key, err := s.ForContainer(container)
	if err != nil {
		return 0, fmt.Errorf("key for %s: %w", filepath.Base(path), err)
	}
	return key, nil
}
