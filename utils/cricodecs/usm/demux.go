package usm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	harukiLogger "haruki-cutscenes/utils/logger"
)

var logger = harukiLogger.NewLogger("UsmDemuxer", "INFO", nil)

type Options struct {
	OutputDir string

	// SkipVideo and SkipAudio drop the matching elementary streams.
	SkipVideo bool
	SkipAudio bool

	// MaskAudio unmasks audio payloads before writing them. No known title
	// needs it; HCA streams carry their own cipher.
	MaskAudio bool

	// WriteMetadata dumps the CRID table next to the outputs.
	WriteMetadata bool
}

// Result describes the files produced by one demux run.
type Result struct {
	Base       string
	Video      string
	VideoBytes int64
	Audio      map[int]string
	AudioBytes map[int]int64
	Metadata   *Metadata

	// MetadataFile is set when the CRID table was written.
	MetadataFile string
	Chunks       int
	Skipped      int
}

// AudioFiles returns the audio outputs ordered by channel number.
func (r *Result) AudioFiles() []string {
	var files []string
	for ch := 0; ch < 256; ch++ {
		if f, ok := r.Audio[ch]; ok {
			files = append(files, f)
		}
	}
	return files
}

type Demuxer struct {
	mask *Mask
	opts Options
}

func NewDemuxer(key1, key2 uint32, opts Options) *Demuxer {
	return &Demuxer{mask: NewMask(key1, key2), opts: opts}
}

// outputs opens each destination on first use and keeps it open for the
// rest of the run.
type outputs struct {
	files map[string]*os.File
}

func (o *outputs) write(path string, data []byte) error {
	f, ok := o.files[path]
	if !ok {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		o.files[path] = f
	}
	_, err := f.Write(data)
	return err
}

func (o *outputs) close() error {
	var errs []error
	for _, f := range o.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// DemuxFile demuxes the container at path.
func (d *Demuxer) DemuxFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return d.Demux(f, filepath.Base(path))
}

// Demux splits the chunk stream of a container named name into
// <base>.ivf and <base>_<channel>.hca under the output directory.
func (d *Demuxer) Demux(r io.ReadSeeker, name string) (res *Result, err error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	outDir := d.opts.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	res = &Result{
		Base:       base,
		Audio:      map[int]string{},
		AudioBytes: map[int]int64{},
	}
	out := &outputs{files: map[string]*os.File{}}
	defer func() {
		if cerr := out.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	logger.Infof("Demuxing %s: extracting video and audio...", name)
	cr := NewChunkReader(r)
	for {
		h, payload, nerr := cr.Next()
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			return res, nerr
		}
		res.Chunks++

		switch h.Signature {
		case SignatureCRID:
			if res.Metadata != nil {
				continue
			}
			md, perr := parseMetadata(payload)
			if perr != nil {
				logger.Warnf("Failed to parse CRID metadata of %s: %v", name, perr)
				continue
			}
			res.Metadata = md
		case SignatureSFV:
			if h.DataType != DataTypeStream || d.opts.SkipVideo {
				continue
			}
			d.mask.Video(payload)
			path := filepath.Join(outDir, base+".ivf")
			if err := out.write(path, payload); err != nil {
				return res, fmt.Errorf("failed to write video stream: %w", err)
			}
			res.Video = path
			res.VideoBytes += int64(len(payload))
		case SignatureSFA:
			if h.DataType != DataTypeStream || d.opts.SkipAudio {
				continue
			}
			if d.opts.MaskAudio {
				d.mask.Audio(payload)
			}
			ch := int(h.ChannelNo)
			path := filepath.Join(outDir, fmt.Sprintf("%s_%d.hca", base, ch))
			if err := out.write(path, payload); err != nil {
				return res, fmt.Errorf("failed to write audio stream %d: %w", ch, err)
			}
			res.Audio[ch] = path
			res.AudioBytes[ch] += int64(len(payload))
		default:
			logger.Infof("Signature %s (0x%08X) unknown, skipping...", h.SignatureString(), h.Signature)
			res.Skipped++
		}
	}

	if d.opts.WriteMetadata && res.Metadata != nil {
		path := filepath.Join(outDir, base+".crid.json")
		if err := res.Metadata.WriteJSON(path); err != nil {
			logger.Warnf("Failed to write metadata of %s: %v", name, err)
		} else {
			res.MetadataFile = path
		}
	}
	logger.Infof("Demuxed %s: %d chunks, video %d bytes, %d audio streams", name, res.Chunks, res.VideoBytes, len(res.Audio))
	return res, nil
}
