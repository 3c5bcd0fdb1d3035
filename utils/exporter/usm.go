package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"haruki-cutscenes/utils"
	"haruki-cutscenes/utils/cricodecs/usm"
	"haruki-cutscenes/utils/keys"
)

// USMResult lists what one container export left on disk.
type USMResult struct {
	Demux  *usm.Result
	Key    keys.Key
	Audio  map[int]string
	Merged string

	// Outputs are the files worth keeping or uploading.
	Outputs []string
}

// ExportUSM demuxes usmFile, decodes every audio stream and, when enabled,
// merges video, audio and subtitles into <out>/<base>.mkv.
func ExportUSM(ctx context.Context, usmFile string, opts Options, ks KeySource) (*USMResult, error) {
	key, err := ks.ForContainer(usmFile)
	if err != nil {
		return nil, err
	}
	outputDir := opts.outputDir(usmFile)
	key1, key2 := key.Split()
	demuxer := usm.NewDemuxer(key1, key2, usm.Options{
		OutputDir:     outputDir,
		MaskAudio:     opts.MaskAudio,
		WriteMetadata: opts.WriteMetadata,
	})
	demuxed, err := demuxer.DemuxFile(usmFile)
	if err != nil {
		return nil, fmt.Errorf("failed to demux %s: %w", filepath.Base(usmFile), err)
	}
	result := &USMResult{Demux: demuxed, Key: key}

	decodeOpts := opts
	decodeOpts.OutputDir = outputDir
	result.Audio, err = decodeStreams(ctx, demuxed, key, decodeOpts)
	if err != nil {
		return result, err
	}

	if !opts.Merge {
		if demuxed.Video != "" {
			result.Outputs = append(result.Outputs, demuxed.Video)
		}
		for _, ch := range sortedChannels(result.Audio) {
			result.Outputs = append(result.Outputs, result.Audio[ch])
		}
		if demuxed.MetadataFile != "" {
			result.Outputs = append(result.Outputs, demuxed.MetadataFile)
		}
		return result, nil
	}

	if demuxed.Video == "" {
		return result, fmt.Errorf("no video stream in %s, nothing to merge", filepath.Base(usmFile))
	}
	merged, generated, err := mergeOutputs(ctx, demuxed, result.Audio, outputDir, opts)
	if err != nil {
		return result, err
	}
	result.Merged = merged
	result.Outputs = append(result.Outputs, merged)
	if demuxed.MetadataFile != "" {
		result.Outputs = append(result.Outputs, demuxed.MetadataFile)
	}
	if !opts.NoCleanup {
		cleanFiles(demuxed, result.Audio, generated)
	}
	return result, nil
}

// decodeStreams decodes each extracted HCA stream on its own goroutine.
// Streams share nothing, so they can run in parallel.
func decodeStreams(ctx context.Context, demuxed *usm.Result, key keys.Key, opts Options) (map[int]string, error) {
	type decoded struct {
		channel int
		path    string
		err     error
	}
	channels := sortedChannels(demuxed.Audio)
	results := make([]decoded, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i, ch int) {
			defer wg.Done()
			out, err := ExportHCA(ctx, demuxed.Audio[ch], key, opts)
			results[i] = decoded{channel: ch, path: out, err: err}
		}(i, ch)
	}
	wg.Wait()

	audio := make(map[int]string, len(results))
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("audio stream %d: %w", r.channel, r.err))
			continue
		}
		audio[r.channel] = r.path
	}
	return audio, errors.Join(errs...)
}

func mergeOutputs(ctx context.Context, demuxed *usm.Result, audio map[int]string, outputDir string, opts Options) (string, []string, error) {
	merged := filepath.Join(outputDir, demuxed.Base+".mkv")
	merger, err := NewMerger(opts.Engine, merged, opts.Tools, opts.MergeAudioCodec, opts.MergeVideoCodec)
	if err != nil {
		return "", nil, err
	}
	if err := merger.AddVideoTrack(demuxed.Video); err != nil {
		return "", nil, err
	}

	languages := opts.AudioLanguages
	if len(languages) == 0 {
		languages = utils.DefaultAudioLanguages
	}
	for _, ch := range sortedChannels(audio) {
		if !utils.WantAudioChannel(ch, languages) {
			logger.Debugf("Skipping audio channel %d of %s", ch, demuxed.Base)
			continue
		}
		if err := merger.AddAudioTrack(audio[ch], ch); err != nil {
			return "", nil, err
		}
	}

	var generated []string
	if opts.Subtitles {
		generated, err = addSubtitles(merger, demuxed.Base, outputDir, opts)
		if err != nil {
			return "", generated, err
		}
	}

	logger.Infof("Merging %s using %s", merged, engineName(merger))
	if err := merger.Merge(ctx); err != nil {
		return "", generated, fmt.Errorf("failed to merge %s: %w", demuxed.Base, err)
	}
	return merged, generated, nil
}

// addSubtitles adds one track per subtitle language and the fonts, and
// returns the ASS files converted on the way.
func addSubtitles(merger Merger, base, outputDir string, opts Options) ([]string, error) {
	if opts.SubsFolder == "" {
		return nil, fmt.Errorf("subtitles requested but no subtitles folder is configured")
	}
	subs, err := FindSubtitles(opts.SubsFolder, base)
	if err != nil {
		return nil, fmt.Errorf("failed to search subtitles: %w", err)
	}
	if len(subs) == 0 {
		logger.Infof("No subtitles found for cutscene %s", base)
		return nil, nil
	}

	var generated []string
	for _, sub := range subs {
		subFile := sub.Path
		if !strings.EqualFold(filepath.Ext(subFile), ".ass") {
			subFile, err = ConvertSRTToASS(sub.Path, outputDir, sub.Language)
			if err != nil {
				return generated, err
			}
			generated = append(generated, subFile)
		}
		logger.Infof("Using subs file %s", filepath.Base(sub.Path))
		if err := merger.AddSubtitlesTrack(subFile, sub.Language); err != nil {
			return generated, err
		}
	}

	attachments := opts.Attachments
	if attachments == nil {
		attachments = DefaultAttachments(opts.SubsFolder)
	}
	for _, a := range attachments {
		if _, err := os.Stat(a.Path); err != nil {
			logger.Infof("%s font not found, skipping...", filepath.Base(a.Path))
			continue
		}
		if err := merger.AddAttachment(a.Path, a.Description); err != nil {
			return generated, err
		}
	}
	return generated, nil
}

func engineName(m Merger) string {
	if _, ok := m.(*FFMPEG); ok {
		return EngineFFMPEG
	}
	return EngineMKVMerge
}

// cleanFiles removes the intermediates of a merged container.
func cleanFiles(demuxed *usm.Result, audio map[int]string, generated []string) {
	files := []string{demuxed.Video}
	for _, ch := range sortedChannels(demuxed.Audio) {
		files = append(files, demuxed.Audio[ch])
	}
	for _, ch := range sortedChannels(audio) {
		files = append(files, audio[ch])
	}
	files = append(files, generated...)
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove %s: %v", f, err)
		}
	}
}

func sortedChannels(m map[int]string) []int {
	channels := make([]int, 0, len(m))
	for ch := range m {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}
