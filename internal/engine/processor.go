package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/fingerprint"
	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/source"
)

// RetryPolicy configures the File Processor's per-file retry behavior (spec
// §4.8: 3 attempts, 200ms -> 800ms -> 3.2s exponential backoff).
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Processor implements component G: given one Classification, it fetches
// bytes (when needed), hashes, assigns or reuses the uuid_filename, calls the
// RAG Adapter, and produces the FileRecord to insert (spec §4.6).
type Processor struct {
	KBName  string
	Source  source.Adapter
	RAG     ragsink.Adapter
	Retry   RetryPolicy
	ScanMode bool // when true, skip all RAG Adapter calls (component J, spec §4.10)
	Logger  *slog.Logger
	clock   clock
}

// NewProcessor builds a Processor. A nil logger installs slog.Default().
func NewProcessor(kbName string, src source.Adapter, rag ragsink.Adapter, retry RetryPolicy, scanMode bool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{KBName: kbName, Source: src, RAG: rag, Retry: retry, ScanMode: scanMode, Logger: logger}
}

// Process handles one Classification to completion, never returning an error
// for a per-file failure — those are captured in the returned FileRecord
// (status error/scan_error) per spec §4.6/§7. Process returns an error only
// when ctx is already done before any work starts (ctx.Err(), so the
// orchestrator's worker pool can stop dequeuing without writing a spurious
// record for work it never attempted) or when c.Change is not one of the four
// known change types.
func (p *Processor) Process(ctx context.Context, c Classification) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	switch c.Change {
	case ChangeDeleted:
		return p.processDeleted(ctx, c), nil
	case ChangeNew:
		return p.processNew(ctx, c), nil
	case ChangeModified:
		return p.processModified(ctx, c), nil
	case ChangeUnchanged:
		return p.processUnchanged(c), nil
	default:
		return Outcome{}, fmt.Errorf("engine: unknown change type %q", c.Change)
	}
}

func (p *Processor) processNew(ctx context.Context, c Classification) Outcome {
	content, data, err := p.fetchAndHash(ctx, c.OriginalURI)
	if err != nil {
		return p.errorOutcome(c, err)
	}

	filename := fingerprint.NewUUIDFilename(c.OriginalURI)
	if c.Restoration && c.Existing != nil && c.Existing.UUIDFilename != "" {
		filename = c.Existing.UUIDFilename
	}

	rec := p.baseRecord(c, content, data, filename)
	rec.Status = p.statusFor(catalog.FileStatusNew)

	if p.ScanMode {
		rec.RAGURI = sentinelURI(p.KBName, c.OriginalURI)
		return Outcome{Record: rec}
	}

	ragURI, err := p.uploadWithRetry(ctx, filename, data, ragMetadata(rec))
	if err != nil {
		return p.errorOutcome(c, err)
	}
	rec.RAGURI = ragURI
	return Outcome{Record: rec, Uploaded: true}
}

func (p *Processor) processModified(ctx context.Context, c Classification) Outcome {
	content, data, err := p.fetchAndHash(ctx, c.OriginalURI)
	if err != nil {
		return p.errorOutcome(c, err)
	}

	// Hash-verified downgrade (spec §4.6, testable property 8): only applies
	// when the size pre-filter did not already decide MODIFIED.
	if !c.SizeDecided && c.Existing != nil && content.hash == c.Existing.FileHash {
		rec := p.baseRecord(c, content, data, c.Existing.UUIDFilename)
		rec.Status = p.statusFor(catalog.FileStatusUnchanged)
		rec.RAGURI = c.Existing.RAGURI
		return Outcome{Record: rec}
	}

	filename := ""
	ragURI := ""
	if c.Existing != nil {
		filename = c.Existing.UUIDFilename
		ragURI = c.Existing.RAGURI
	}

	rec := p.baseRecord(c, content, data, filename)
	rec.Status = p.statusFor(catalog.FileStatusModified)

	if p.ScanMode {
		rec.RAGURI = ragURI
		return Outcome{Record: rec}
	}

	if err := p.updateWithRetry(ctx, ragURI, data, ragMetadata(rec)); err != nil {
		return p.errorOutcome(c, err)
	}
	rec.RAGURI = ragURI
	return Outcome{Record: rec, Updated: true}
}

func (p *Processor) processUnchanged(c Classification) Outcome {
	rec := catalog.FileRecord{
		OriginalURI: c.OriginalURI,
		Status:      p.statusFor(catalog.FileStatusUnchanged),
	}
	if c.Existing != nil {
		rec.UUIDFilename = c.Existing.UUIDFilename
		rec.RAGURI = c.Existing.RAGURI
		rec.FileHash = c.Existing.FileHash
		rec.FileSize = c.Existing.FileSize
	}
	if c.Descriptor != nil {
		applyDescriptor(&rec, c.Descriptor)
	}
	return Outcome{Record: rec, FetchSkipped: true}
}

func (p *Processor) processDeleted(ctx context.Context, c Classification) Outcome {
	rec := catalog.FileRecord{
		OriginalURI: c.OriginalURI,
		Status:      catalog.FileStatusDeleted,
		FileHash:    "",
	}
	if c.Existing != nil {
		rec.UUIDFilename = c.Existing.UUIDFilename
		rec.RAGURI = c.Existing.RAGURI
		rec.SourceID = c.Existing.SourceID
		rec.SourceType = c.Existing.SourceType
	}

	if p.ScanMode {
		rec.Status = catalog.FileStatusScanned
		return Outcome{Record: rec}
	}

	if rec.RAGURI != "" {
		err := p.retry(ctx, func() error {
			err := p.RAG.Delete(ctx, rec.RAGURI)
			if errors.Is(err, ragsink.ErrNotFound) {
				return nil // non-fatal, spec §4.2
			}
			return err
		})
		if err != nil {
			return p.errorOutcome(c, err)
		}
	}
	return Outcome{Record: rec, Deleted: true}
}

// fetchedContent bundles a Fetch result with its computed hash so callers
// don't recompute it.
type fetchedContent struct {
	size             int64
	contentType      string
	sourceCreatedAt  *time.Time
	sourceModifiedAt *time.Time
	hash             string
}

func (p *Processor) fetchAndHash(ctx context.Context, uri string) (fetchedContent, []byte, error) {
	var content *source.Content
	var data []byte

	err := p.retry(ctx, func() error {
		c, err := p.Source.Fetch(ctx, uri)
		if err != nil {
			return err
		}
		defer c.Reader.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(c.Reader); err != nil {
			return fmt.Errorf("%w: read content: %v", source.ErrTransient, err)
		}
		content = c
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return fetchedContent{}, nil, err
	}

	return fetchedContent{
		size:             content.Size,
		contentType:      content.ContentType,
		sourceCreatedAt:  content.SourceCreatedAt,
		sourceModifiedAt: content.SourceModifiedAt,
		hash:             fingerprint.Hash(data),
	}, data, nil
}

func (p *Processor) uploadWithRetry(ctx context.Context, filename string, data []byte, metadata ragsink.Metadata) (string, error) {
	var ragURI string
	err := p.retry(ctx, func() error {
		uri, err := p.RAG.Upload(ctx, bytes.NewReader(data), filename, metadata)
		if err != nil {
			return err
		}
		ragURI = uri
		return nil
	})
	return ragURI, err
}

func (p *Processor) updateWithRetry(ctx context.Context, ragURI string, data []byte, metadata ragsink.Metadata) error {
	return p.retry(ctx, func() error {
		return p.RAG.Update(ctx, ragURI, bytes.NewReader(data), metadata)
	})
}

// retry wraps op in the configured exponential backoff, retrying only on
// transient/unavailable sentinel errors (spec §4.8); a non-transient error
// (e.g. ragsink.ErrConflict, source.ErrNotFound) fails fast.
func (p *Processor) retry(ctx context.Context, op func() error) error {
	attempts := p.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.Multiplier = 4
	if p.Retry.InitialInterval > 0 {
		bo.InitialInterval = p.Retry.InitialInterval
	}
	if p.Retry.MaxInterval > 0 {
		bo.MaxInterval = p.Retry.MaxInterval
	}
	policy := backoff.WithMaxRetries(bo, uint64(attempts-1))

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

func isRetryable(err error) bool {
	return errors.Is(err, source.ErrTransient) || errors.Is(err, source.ErrSourceUnavailable) ||
		errors.Is(err, ragsink.ErrTransient) || errors.Is(err, ragsink.ErrAdapterUnavailable)
}

func (p *Processor) baseRecord(c Classification, content fetchedContent, data []byte, uuidFilename string) catalog.FileRecord {
	rec := catalog.FileRecord{
		OriginalURI:  c.OriginalURI,
		FileHash:     content.hash,
		UUIDFilename: uuidFilename,
		FileSize:     int64(len(data)),
	}
	if c.Descriptor != nil {
		applyDescriptor(&rec, c.Descriptor)
	}
	if content.contentType != "" {
		rec.ContentType = content.contentType
	}
	if content.sourceCreatedAt != nil {
		rec.SourceCreatedAt = content.sourceCreatedAt
	}
	if content.sourceModifiedAt != nil {
		rec.SourceModifiedAt = content.sourceModifiedAt
	}
	return rec
}

func applyDescriptor(rec *catalog.FileRecord, d *source.Descriptor) {
	rec.FileSize = d.Size
	rec.ContentType = d.ContentType
	rec.SourceCreatedAt = d.SourceCreatedAt
	rec.SourceModifiedAt = d.SourceModifiedAt
}

func (p *Processor) statusFor(normalStatus string) string {
	if !p.ScanMode {
		return normalStatus
	}
	switch normalStatus {
	case catalog.FileStatusNew, catalog.FileStatusModified, catalog.FileStatusUnchanged:
		return catalog.FileStatusScanned
	default:
		return normalStatus
	}
}

func (p *Processor) errorOutcome(c Classification, err error) Outcome {
	p.Logger.Warn("file processing error", "original_uri", c.OriginalURI, "error", err)

	status := catalog.FileStatusError
	if p.ScanMode {
		status = catalog.FileStatusScanError
	}

	rec := catalog.FileRecord{
		OriginalURI:  c.OriginalURI,
		RAGURI:       sentinelURI(p.KBName, c.OriginalURI),
		FileHash:     "",
		UUIDFilename: "",
		Status:       status,
		ErrorMessage: err.Error(),
	}
	return Outcome{Record: rec}
}

// sentinelURI builds the sentinel rag_uri spec §3 requires for error rows
// (and, pragmatically, for scan-mode rows that never call a real RAG adapter):
// "<kb-name>/error-<timestamp>".
func sentinelURI(kbName, originalURI string) string {
	return fmt.Sprintf("%s/error-%d", kbName, time.Now().Unix())
}

func ragMetadata(rec catalog.FileRecord) ragsink.Metadata {
	md := ragsink.Metadata{
		"original_uri": rec.OriginalURI,
	}
	if rec.ContentType != "" {
		md["content_type"] = rec.ContentType
	}
	return md
}
