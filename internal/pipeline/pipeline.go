// Package pipeline drives one batch run: discover page images, OCR each one,
// parse its footer, and serialize the result.
//
// No stage recovers from failures locally. Every error is converted into a
// taxonomy failure and propagated unmodified so the execution boundary is the
// only place that observes it; a retry re-invokes the whole unit of work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"footerscan/internal/boundary"
	"footerscan/internal/classify"
	"footerscan/internal/config"
	"footerscan/internal/failures"
	"footerscan/internal/footer"
	"footerscan/internal/logfields"
	"footerscan/internal/metrics"
	"footerscan/internal/observability"
	"footerscan/internal/ocr"
	"footerscan/internal/runlog"
)

// Classifier is the slice of the catalog the pipeline needs for recording
// outcomes. Satisfied by *classify.Catalog.
type Classifier interface {
	MapFailureToErrorCode(err error) classify.ErrorCode
}

// Result is the per-document YAML output.
type Result struct {
	Source      string          `yaml:"source"`
	Footer      footer.Metadata `yaml:"footer"`
	OCRChars    int             `yaml:"ocr_chars"`
	ProcessedAt time.Time       `yaml:"processed_at"`
}

// Pipeline processes one input directory. It is strictly sequential: one
// document at a time, one top-level unit of work per run.
type Pipeline struct {
	cfg        *config.Config
	ocrClient  *ocr.Client
	classifier Classifier
	store      *runlog.Store
	recorder   metrics.Recorder

	// attempts counts how often each document was processed during the run,
	// across boundary retries of the whole batch.
	attempts map[string]int
}

// New builds a pipeline. store may be nil (no run history); recorder may be
// nil (no metrics).
func New(cfg *config.Config, ocrClient *ocr.Client, classifier Classifier, store *runlog.Store, recorder metrics.Recorder) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline requires a configuration")
	}
	if ocrClient == nil {
		return nil, fmt.Errorf("pipeline requires an ocr client")
	}
	if classifier == nil {
		return nil, fmt.Errorf("pipeline requires a classifier")
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Pipeline{
		cfg:        cfg,
		ocrClient:  ocrClient,
		classifier: classifier,
		store:      store,
		recorder:   recorder,
		attempts:   make(map[string]int),
	}, nil
}

// UnitOfWork returns the boundary-shaped closure for one batch run.
func (p *Pipeline) UnitOfWork(ctx context.Context, runID string) boundary.UnitOfWork {
	return func() (int, error) {
		return p.run(observability.WithRunID(ctx, runID), runID)
	}
}

func (p *Pipeline) run(ctx context.Context, runID string) (int, error) {
	started := time.Now()
	defer func() { p.recorder.RecordRunDuration(time.Since(started)) }()

	documents, err := p.Discover()
	if err != nil {
		return 0, err
	}
	observability.InfoContext(ctx, "Batch run starting",
		logfields.Stage("discover"), slog.Int("documents", len(documents)))

	if err := p.prepareOutput(); err != nil {
		return 0, err
	}

	for _, doc := range documents {
		docCtx := observability.WithDocument(ctx, doc)
		p.attempts[doc]++
		if err := p.processDocument(docCtx, doc); err != nil {
			p.record(ctx, runID, doc, "failed", err)
			p.recorder.RecordDocument("failed")
			return 0, err
		}
		p.record(ctx, runID, doc, "ok", nil)
		p.recorder.RecordDocument("ok")
	}

	observability.InfoContext(ctx, "Batch run completed", slog.Int("documents", len(documents)))
	return 0, nil
}

// Discover walks the input directory and returns matching page images in a
// stable order.
func (p *Pipeline) Discover() ([]string, error) {
	var documents []string
	root := p.cfg.Input.Directory

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p.matchesExtension(path) {
			documents = append(documents, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fail(failures.NewFileAccess(root, "scan input directory", walkErr))
	}

	sort.Strings(documents)
	return documents, nil
}

func (p *Pipeline) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range p.cfg.Input.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (p *Pipeline) prepareOutput() error {
	out := p.cfg.Output.Directory
	if p.cfg.Output.Clean {
		if err := os.RemoveAll(out); err != nil {
			return fail(failures.NewFileAccess(out, "clean output directory", err))
		}
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fail(failures.NewFileAccess(out, "create output directory", err))
	}
	return nil
}

func (p *Pipeline) processDocument(ctx context.Context, path string) error {
	// Stage: load.
	loadCtx := observability.WithStage(ctx, "load")
	image, err := os.ReadFile(path)
	if err != nil {
		return fail(failures.NewFileAccess(path, "read page image", err))
	}
	if len(image) == 0 {
		return fail(failures.NewContentProcessing(path, "page image is empty", nil))
	}
	observability.DebugContext(loadCtx, "Page image loaded", slog.Int("bytes", len(image)))

	// Stage: ocr.
	text, err := p.recognize(observability.WithStage(ctx, "ocr"), image)
	if err != nil {
		return err
	}

	// Stage: parse.
	parseCtx := observability.WithStage(ctx, "parse")
	meta, err := footer.ExtractAndParse(text)
	if err != nil {
		return fail(failures.NewContentProcessing(path, "parse page footer", err))
	}
	observability.DebugContext(parseCtx, "Footer parsed", slog.String("document_id", meta.DocumentID))

	// Stage: serialize.
	return p.writeResult(observability.WithStage(ctx, "serialize"), path, Result{
		Source:      path,
		Footer:      meta,
		OCRChars:    len(text),
		ProcessedAt: time.Now().UTC(),
	})
}

func (p *Pipeline) recognize(ctx context.Context, image []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.OCR.Timeout.Std())
	defer cancel()

	text, err := p.ocrClient.Recognize(reqCtx, image)
	if err == nil {
		return text, nil
	}

	var timeoutErr *ocr.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "", fail(failures.NewOperationTimeout(timeoutErr.Elapsed, "ocr request timed out", err))
	}
	var connErr *ocr.ConnectionError
	if errors.As(err, &connErr) {
		return "", fail(failures.NewNetworkConnection(connErr.URL, "ocr service unreachable", err))
	}
	return "", fail(failures.NewNetworkConnection(p.ocrClient.URL(), "ocr request failed", err))
}

func (p *Pipeline) writeResult(ctx context.Context, source string, result Result) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fail(failures.NewSerialization("yaml", "encode document result", err))
	}

	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ".yaml"
	target := filepath.Join(p.cfg.Output.Directory, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fail(failures.NewFileAccess(target, "write document result", err))
	}
	observability.InfoContext(ctx, "Document result written", logfields.Document(source))
	return nil
}

// record stores the per-document outcome; runlog problems are logged, never
// allowed to mask the pipeline outcome.
func (p *Pipeline) record(ctx context.Context, runID, doc, outcome string, cause error) {
	if p.store == nil {
		return
	}
	rec := runlog.DocumentRecord{
		RunID:    runID,
		Document: doc,
		Outcome:  outcome,
		Attempts: p.attempts[doc],
	}
	if cause != nil {
		rec.ErrorCode = string(p.classifier.MapFailureToErrorCode(cause))
	}
	if err := p.store.RecordDocument(ctx, rec); err != nil {
		observability.WarnContext(ctx, "Failed to record document outcome", logfields.Error(err))
	}
}

// fail collapses the (failure, constructor error) pair: constructor errors
// only occur on empty context, which call sites here never pass.
func fail(f *failures.Failure, err error) error {
	if err != nil {
		return err
	}
	return f
}
