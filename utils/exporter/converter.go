package exporter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Audio formats produced from the decoded WAV.
const (
	AudioFormatWAV  = "wav"
	AudioFormatMP3  = "mp3"
	AudioFormatFLAC = "flac"
	AudioFormatOGG  = "ogg"
)

// audioEncoderArgs are the ffmpeg encoder flags per target format.
var audioEncoderArgs = map[string][]string{
	AudioFormatMP3:  {"-b:a", "320k"},
	AudioFormatFLAC: {"-compression_level", "12"},
	AudioFormatOGG:  {"-c:a", "libvorbis", "-q:a", "8"},
}

func ValidAudioFormat(format string) bool {
	if format == "" || format == AudioFormatWAV {
		return true
	}
	_, ok := audioEncoderArgs[format]
	return ok
}

func convertArgs(wavFile, dstFile, format string) ([]string, error) {
	enc, ok := audioEncoderArgs[format]
	if !ok {
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
	args := []string{"-i", wavFile}
	args = append(args, enc...)
	return append(args, "-y", dstFile), nil
}

// ConvertWav re-encodes wavFile with ffmpeg and returns the new file.
func ConvertWav(ctx context.Context, wavFile string, format string, deleteOriginal bool, ffmpegPath string) (string, error) {
	if format == "" || format == AudioFormatWAV {
		return wavFile, nil
	}
	dstFile := strings.TrimSuffix(wavFile, ".wav") + "." + format
	args, err := convertArgs(wavFile, dstFile, format)
	if err != nil {
		return "", err
	}
	if ffmpegPath == "" {
		ffmpegPath = EngineFFMPEG
	}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to convert WAV to %s: %w", strings.ToUpper(format), err)
	}
	if deleteOriginal {
		if _, err := os.Stat(wavFile); err == nil {
			if err := os.Remove(wavFile); err != nil {
				return dstFile, fmt.Errorf("failed to delete original WAV file: %w", err)
			}
		}
	}
	return dstFile, nil
}
