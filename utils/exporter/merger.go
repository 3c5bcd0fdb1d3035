package exporter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"haruki-cutscenes/utils"
)

// Merge engines.
const (
	EngineMKVMerge = "mkvmerge"
	EngineFFMPEG   = "ffmpeg"
)

// Merger collects tracks and packs them into one Matroska file.
type Merger interface {
	AddVideoTrack(videoFile string) error
	AddAudioTrack(audioFile string, channel int) error
	AddSubtitlesTrack(subFile string, language string) error
	AddAttachment(file string, description string) error
	Args() []string
	Merge(ctx context.Context) error
}

// NewMerger picks the engine. Any explicit codec forces ffmpeg.
func NewMerger(engine, output string, tools ToolPaths, audioCodec, videoCodec string) (Merger, error) {
	if audioCodec != "" || videoCodec != "" {
		engine = EngineFFMPEG
	}
	switch engine {
	case EngineMKVMerge, "":
		return NewMKVMerge(output, tools.MKVMerge)
	case EngineFFMPEG:
		return NewFFMPEG(output, tools.FFMPEG, audioCodec, videoCodec), nil
	default:
		return nil, fmt.Errorf("unsupported merge engine %q", engine)
	}
}

func requireFile(kind, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s file %s not found: %w", kind, path, err)
	}
	return nil
}

func run(ctx context.Context, program string, args []string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", program, strings.Join(args, " "), err)
	}
	return nil
}

type MKVMerge struct {
	program string
	args    []string
}

func NewMKVMerge(output, program string) (*MKVMerge, error) {
	if filepath.Ext(output) != ".mkv" {
		return nil, fmt.Errorf("output file provided to mkvmerge isn't valid: %s", output)
	}
	if program == "" {
		program = EngineMKVMerge
	}
	return &MKVMerge{program: program, args: []string{"-q", "-o", output}}, nil
}

func (m *MKVMerge) AddVideoTrack(videoFile string) error {
	if err := requireFile("video", videoFile); err != nil {
		return err
	}
	m.args = append(m.args,
		"--track-name", "0:"+utils.FileBase(videoFile),
		"--default-track", "0:0", "--forced-track", "0:0",
		"-d", "0", "-A", "-S", videoFile)
	return nil
}

func (m *MKVMerge) AddAudioTrack(audioFile string, channel int) error {
	if err := requireFile("audio", audioFile); err != nil {
		return err
	}
	lang, err := utils.ParseAudioLanguage(channel)
	if err != nil {
		return err
	}
	m.args = append(m.args,
		"--track-name", "0:"+lang.Name, "--language", "0:"+lang.Code,
		"--default-track", "0:0", "--forced-track", "0:0",
		"-D", "-a", "0", "-S", audioFile)
	return nil
}

func (m *MKVMerge) AddSubtitlesTrack(subFile string, language string) error {
	lang, err := utils.ParseSubtitleLanguage(language)
	if err != nil {
		return err
	}
	m.args = append(m.args,
		"--track-name", "0:"+lang.Name, "--language", "0:"+lang.Code,
		"--default-track", "0:0", "--forced-track", "0:0",
		"-D", "-A", "-s", "0", subFile)
	return nil
}

func (m *MKVMerge) AddAttachment(file string, description string) error {
	if err := requireFile("attachment", file); err != nil {
		return err
	}
	m.args = append(m.args, "--attachment-description", description, "--attach-file", file)
	return nil
}

func (m *MKVMerge) Args() []string {
	return append([]string(nil), m.args...)
}

func (m *MKVMerge) Merge(ctx context.Context) error {
	return run(ctx, m.program, m.args)
}

type FFMPEG struct {
	program     string
	output      string
	audioCodec  string
	videoCodec  string
	inputs      []string
	maps        []string
	metadata    []string
	videos      int
	audios      int
	subs        int
	attachments int
}

func NewFFMPEG(output, program, audioCodec, videoCodec string) *FFMPEG {
	if program == "" {
		program = EngineFFMPEG
	}
	return &FFMPEG{program: program, output: output, audioCodec: audioCodec, videoCodec: videoCodec}
}

func (f *FFMPEG) nextMap() {
	f.maps = append(f.maps, "-map", strconv.Itoa(f.videos+f.audios+f.subs))
}

func (f *FFMPEG) AddVideoTrack(videoFile string) error {
	if err := requireFile("video", videoFile); err != nil {
		return err
	}
	f.inputs = append(f.inputs, "-i", videoFile)
	f.nextMap()
	stream := fmt.Sprintf("-metadata:s:v:%d", f.videos)
	f.metadata = append(f.metadata, stream, "language=und", stream, "title="+utils.FileBase(videoFile))
	f.videos++
	return nil
}

func (f *FFMPEG) AddAudioTrack(audioFile string, channel int) error {
	if err := requireFile("audio", audioFile); err != nil {
		return err
	}
	lang, err := utils.ParseAudioLanguage(channel)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, "-i", audioFile)
	f.nextMap()
	stream := fmt.Sprintf("-metadata:s:a:%d", f.audios)
	f.metadata = append(f.metadata, stream, "language="+lang.Code, stream, "title="+lang.Name)
	f.audios++
	return nil
}

func (f *FFMPEG) AddSubtitlesTrack(subFile string, language string) error {
	lang, err := utils.ParseSubtitleLanguage(language)
	if err != nil {
		return err
	}
	f.inputs = append(f.inputs, "-i", subFile)
	f.nextMap()
	stream := fmt.Sprintf("-metadata:s:s:%d", f.subs)
	f.metadata = append(f.metadata, stream, "language="+lang.Code, stream, "title="+lang.Name)
	f.subs++
	return nil
}

func (f *FFMPEG) AddAttachment(file string, description string) error {
	if err := requireFile("attachment", file); err != nil {
		return err
	}
	f.inputs = append(f.inputs, "-attach", file)
	stream := fmt.Sprintf("-metadata:s:t:%d", f.attachments)
	f.metadata = append(f.metadata, stream, "mimetype=application/x-truetype-font", stream, "description="+description)
	f.attachments++
	return nil
}

func (f *FFMPEG) Args() []string {
	args := []string{"-y", "-loglevel", "quiet", "-nostats"}
	args = append(args, f.inputs...)
	args = append(args, f.maps...)
	args = append(args, f.metadata...)
	if f.audioCodec == "" && f.videoCodec == "" {
		return append(args, "-c", "copy", f.output)
	}
	return append(args, "-c:a", orCopy(f.audioCodec), "-c:v", orCopy(f.videoCodec), f.output)
}

func orCopy(codec string) string {
	if codec == "" {
		return "copy"
	}
	return codec
}

func (f *FFMPEG) Merge(ctx context.Context) error {
	return run(ctx, f.program, f.Args())
}
