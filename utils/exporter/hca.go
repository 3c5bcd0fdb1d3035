package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"haruki-cutscenes/utils"
	"haruki-cutscenes/utils/cricodecs/hca"
	"haruki-cutscenes/utils/keys"
)

// ExportHCA decodes hcaFile to <out>/<base>.wav and converts it to the
// configured audio format. The returned path is the final audio file.
func ExportHCA(ctx context.Context, hcaFile string, key keys.Key, opts Options) (string, error) {
	mode, err := ParseSampleFormat(opts.SampleFormat)
	if err != nil {
		return "", err
	}
	if !ValidAudioFormat(opts.AudioFormat) {
		return "", fmt.Errorf("unsupported audio format %q", opts.AudioFormat)
	}
	outputDir := opts.outputDir(hcaFile)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	baseName := utils.FileBase(hcaFile)
	wavFile := filepath.Join(outputDir, baseName+".wav")
	key1, key2 := key.Split()
	if err := hca.DecodeFile(hcaFile, wavFile, key1, key2, mode); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", filepath.Base(hcaFile), err)
	}
	logger.Debugf("Decoded %s to %s", hcaFile, wavFile)

	if opts.ExportDecryptedHCA {
		decryptedDir := filepath.Join(outputDir, "decrypted")
		if err := os.MkdirAll(decryptedDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create decrypted dir: %w", err)
		}
		decrypted := filepath.Join(decryptedDir, baseName+".hca")
		if err := hca.DecryptFile(hcaFile, decrypted, key1, key2); err != nil {
			return "", fmt.Errorf("failed to decrypt %s: %w", filepath.Base(hcaFile), err)
		}
		logger.Debugf("Decrypted %s to %s", hcaFile, decrypted)
	}

	return ConvertWav(ctx, wavFile, opts.AudioFormat, true, opts.Tools.FFMPEG)
}

// ExportHCAFile resolves the key of a standalone HCA file and exports it.
func ExportHCAFile(ctx context.Context, hcaFile string, opts Options, ks KeySource) (string, error) {
	key, err := ks.ForHCA(hcaFile)
	if err != nil {
		return "", err
	}
	return ExportHCA(ctx, hcaFile, key, opts)
}
