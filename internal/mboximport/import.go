// Package mboximport loads mbox archives into a list archive in one
// batch.
package mboximport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/emersion/go-mbox"

	"github.com/nhle/listarchive/internal/archive"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/normalize"
)

// Options controls an import.
type Options struct {
	ListName string

	// Since, when set, skips messages dated before it.
	Since *time.Time

	// Scrubber extracts body text and attachments; nil means the default
	// MIME scrubber.
	Scrubber normalize.Scrubber
}

// Report counts what an import did.
type Report struct {
	Read       int
	Imported   int
	Duplicates int
	Invalid    int
	Skipped    int
	Failed     int
	Threads    int
	Bytes      uint64
	Elapsed    time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf(
		"imported %s of %s messages (%s) into %s threads in %s: %d duplicates, %d invalid, %d too old, %d failed",
		humanize.Comma(int64(r.Imported)), humanize.Comma(int64(r.Read)),
		humanize.Bytes(r.Bytes), humanize.Comma(int64(r.Threads)),
		r.Elapsed.Round(time.Millisecond),
		r.Duplicates, r.Invalid, r.Skipped, r.Failed,
	)
}

// Importer reads mbox files into an archive.
type Importer struct {
	archive *archive.Archiver
	logger  log.Logger
}

func New(a *archive.Archiver) *Importer {
	return &Importer{archive: a, logger: log.NewLogger("import")}
}

// ImportFile imports the mbox file at path.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, opts)
}

// Import archives every message of an mbox stream. Messages that are
// invalid, already archived or older than opts.Since are counted and
// skipped. Thread positions and caches are updated once at the end, also
// when reading stops early, so the messages already stored are threaded.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts Options) (Report, error) {
	var report Report
	start := time.Now()
	batch := im.archive.BeginBatch()

	readErr := im.readAll(ctx, batch, r, opts, &report)

	res, finishErr := batch.Finish(context.WithoutCancel(ctx))
	report.Threads = res.Threads
	report.Elapsed = time.Since(start)
	if err := errors.Join(readErr, finishErr); err != nil {
		im.logger.Warnf("%s: stopped: %s", opts.ListName, report)
		return report, err
	}
	im.logger.Infof("%s: %s", opts.ListName, report)
	return report, nil
}

func (im *Importer) readAll(
	ctx context.Context,
	batch *archive.Batch,
	r io.Reader,
	opts Options,
	report *Report,
) error {
	mbr := mbox.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := mbr.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("reading mbox message %d: %w", report.Read+1, err)
		}

		raw, err := io.ReadAll(msg)
		if err != nil {
			return fmt.Errorf("reading mbox message %d: %w", report.Read+1, err)
		}
		report.Read++
		report.Bytes += uint64(len(raw))

		im.importOne(ctx, batch, raw, opts, report)
	}
}

func (im *Importer) importOne(
	ctx context.Context,
	batch *archive.Batch,
	raw []byte,
	opts Options,
	report *Report,
) {
	parsed, err := normalize.ReadMessage(bytes.NewReader(raw), opts.Scrubber)
	if err != nil {
		im.logger.Warnf("message %d: %v", report.Read, err)
		report.Invalid++
		return
	}
	n, err := normalize.Normalize(parsed)
	if err != nil {
		im.logger.Warnf("message %d: %v", report.Read, err)
		report.Invalid++
		return
	}
	if opts.Since != nil && n.Date.Before(*opts.Since) {
		report.Skipped++
		return
	}

	_, err = batch.Ingest(ctx, opts.ListName, n)
	switch {
	case err == nil:
		report.Imported++
	case errors.Is(err, archive.ErrDuplicateMessage):
		im.logger.Debugf("skipping %s: already archived", n.MessageID)
		report.Duplicates++
	default:
		im.logger.Errorf("importing %s: %v", n.MessageID, err)
		report.Failed++
	}
}
