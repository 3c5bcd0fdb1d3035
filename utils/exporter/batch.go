package exporter

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"haruki-cutscenes/utils/cricodecs/hca"
	"haruki-cutscenes/utils/cricodecs/usm"
	"haruki-cutscenes/utils/keys"
)

type ErrorKind string

// errSkipped marks a file the batch function chose not to process.
var errSkipped = errors.New("skipped")

const (
	KindMalformedMagic               ErrorKind = "MalformedMagic"
	KindChecksumMismatch             ErrorKind = "ChecksumMismatch"
	KindUnknownHeaderTag             ErrorKind = "UnknownHeaderTag"
	KindUnsupportedCipherType        ErrorKind = "UnsupportedCipherType"
	KindInvalidBlockSize             ErrorKind = "InvalidBlockSize"
	KindInvalidCompressionParameters ErrorKind = "InvalidCompressionParameters"
	KindKeyNotFound                  ErrorKind = "KeyNotFound"
	KindKeyTableUnreadable           ErrorKind = "KeyTableUnreadable"
	KindIoFailure                    ErrorKind = "IoFailure"
	KindUnknown                      ErrorKind = "Unknown"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{hca.ErrMalformedMagic, KindMalformedMagic},
	{hca.ErrChecksumMismatch, KindChecksumMismatch},
	{hca.ErrUnknownHeaderTag, KindUnknownHeaderTag},
	{hca.ErrUnsupportedCipherType, KindUnsupportedCipherType},
	{hca.ErrInvalidBlockSize, KindInvalidBlockSize},
	{hca.ErrInvalidCompressionParameters, KindInvalidCompressionParameters},
	{hca.ErrUnsupportedATHType, KindInvalidCompressionParameters},
	{hca.ErrUnsupportedChannelLayout, KindInvalidCompressionParameters},
	{hca.ErrUnsupportedSampleMode, KindInvalidCompressionParameters},
	{keys.ErrKeyNotFound, KindKeyNotFound},
	{keys.ErrInvalidKey, KindKeyNotFound},
	{keys.ErrKeyTableUnreadable, KindKeyTableUnreadable},
	{hca.ErrTruncated, KindIoFailure},
	{usm.ErrTruncatedChunk, KindIoFailure},
}

// Classify maps err onto the kind reported for a failed file.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindIoFailure
	}
	return KindUnknown
}

// Report is the outcome of one file of a batch.
type Report struct {
	File    string    `json:"file"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Skipped bool      `json:"skipped,omitempty"`
	Err     error     `json:"-"`
}

func (r Report) OK() bool {
	return r.Err == nil
}

func (r Report) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunBatch calls fn for every file with at most concurrency calls in
// flight. A failing file never stops the others; reports keep the order
// of files. Files not started before ctx is cancelled report ctx.Err().
func RunBatch(ctx context.Context, files []string, concurrency int, fn func(ctx context.Context, file string) error) []Report {
	if concurrency <= 0 {
		concurrency = 1
	}
	reports := make([]Report, len(files))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, file := range files {
		reports[i] = Report{File: file}
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			reports[i].Err = ctx.Err()
			reports[i].Kind = KindUnknown
			continue
		}
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if err := ctx.Err(); err != nil {
				reports[i].Err = err
				reports[i].Kind = KindUnknown
				return
			}
			if err := fn(ctx, file); err != nil {
				if errors.Is(err, errSkipped) {
					reports[i].Skipped = true
					return
				}
				logger.Errorf("Failed to process %s: %v", file, err)
				reports[i].Err = err
				reports[i].Kind = Classify(err)
			}
		}(i, file)
	}
	wg.Wait()
	return reports
}

// Failed returns the reports that carry an error.
func Failed(reports []Report) []Report {
	var failed []Report
	for _, r := range reports {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
