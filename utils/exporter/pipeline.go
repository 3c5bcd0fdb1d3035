package exporter

import (
	"context"
	"fmt"
)

// Uploader is the remote storage side of a pipeline.
type Uploader interface {
	Enabled() bool
	UploadToAllStorages(ctx context.Context, files []string, localBase string, removeLocal bool) error
}

// Pipeline runs batch exports with the shared options, key source, record
// and uploader of one process.
type Pipeline struct {
	Options           Options
	Keys              KeySource
	Record            *Record
	Uploader          Uploader
	RemoveAfterUpload bool
	Concurrency       int
}

func (p *Pipeline) upload(ctx context.Context, input string, outputs []string) error {
	if p.Uploader == nil || !p.Uploader.Enabled() || len(outputs) == 0 {
		return nil
	}
	return p.Uploader.UploadToAllStorages(ctx, outputs, p.Options.outputDir(input), p.RemoveAfterUpload)
}

// ExportContainers exports every container in files. Containers already in
// the record are reported as skipped.
func (p *Pipeline) ExportContainers(ctx context.Context, files []string) []Report {
	reports := RunBatch(ctx, files, p.Concurrency, func(ctx context.Context, file string) error {
		if p.Record.Done(file) {
			logger.Infof("%s already exported, skipping", file)
			return errSkipped
		}
		res, err := ExportUSM(ctx, file, p.Options, p.Keys)
		if err != nil {
			return err
		}
		if err := p.upload(ctx, file, res.Outputs); err != nil {
			return fmt.Errorf("exported but upload failed: %w", err)
		}
		return p.Record.Mark(file, res.Outputs)
	})
	p.finish(reports)
	return reports
}

// ExportHCAFiles decodes standalone HCA files.
func (p *Pipeline) ExportHCAFiles(ctx context.Context, files []string) []Report {
	reports := RunBatch(ctx, files, p.Concurrency, func(ctx context.Context, file string) error {
		out, err := ExportHCAFile(ctx, file, p.Options, p.Keys)
		if err != nil {
			return err
		}
		return p.upload(ctx, file, []string{out})
	})
	p.finish(reports)
	return reports
}

func (p *Pipeline) finish(reports []Report) {
	if err := p.Record.Save(); err != nil {
		logger.Warnf("Failed to save export record: %v", err)
	}
	failed := len(Failed(reports))
	logger.Infof("Batch finished: %d files, %d failed", len(reports), failed)
}
