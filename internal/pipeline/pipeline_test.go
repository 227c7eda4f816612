package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"footerscan/internal/classify/contracts"
	"footerscan/internal/config"
	"footerscan/internal/failures"
	"footerscan/internal/ocr"
	"footerscan/internal/runlog"
	"gopkg.in/yaml.v3"
)

// newOCRServer serves a fixed OCR response for any image.
func newOCRServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{"text": text}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, ocrURL string) *config.Config {
	t.Helper()
	retries := 3
	input := t.TempDir()
	cfg := &config.Config{
		Input:  config.InputConfig{Directory: input, Extensions: []string{".png"}},
		Output: config.OutputConfig{Directory: filepath.Join(t.TempDir(), "results"), Clean: true},
		OCR:    config.OCRConfig{URL: ocrURL, Timeout: config.Duration(2 * time.Second)},
		Retry:  config.RetryConfig{MaxRetries: &retries, BaseDelay: config.Duration(time.Millisecond)},
	}
	return cfg
}

func writePage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))
	return path
}

func newTestPipeline(t *testing.T, cfg *config.Config, store *runlog.Store) *Pipeline {
	t.Helper()
	client, err := ocr.NewClient(cfg.OCR.URL, cfg.OCR.Timeout.Std())
	require.NoError(t, err)
	catalog, err := contracts.Hydrate(contracts.Default())
	require.NoError(t, err)
	p, err := New(cfg, client, catalog, store, nil)
	require.NoError(t, err)
	return p
}

func TestDiscover(t *testing.T) {
	srv := newOCRServer(t, "irrelevant")
	cfg := testConfig(t, srv.URL)

	writePage(t, cfg.Input.Directory, "b.png")
	writePage(t, cfg.Input.Directory, "a.png")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Input.Directory, "notes.txt"), []byte("x"), 0o644))

	p := newTestPipeline(t, cfg, nil)
	docs, err := p.Discover()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	// Stable order.
	assert.Equal(t, "a.png", filepath.Base(docs[0]))
	assert.Equal(t, "b.png", filepath.Base(docs[1]))
}

func TestDiscoverMissingDirectoryIsFileAccessFailure(t *testing.T) {
	srv := newOCRServer(t, "irrelevant")
	cfg := testConfig(t, srv.URL)
	cfg.Input.Directory = filepath.Join(cfg.Input.Directory, "missing")

	p := newTestPipeline(t, cfg, nil)
	_, err := p.Discover()
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindFileAccess))
}

func TestRunWritesResults(t *testing.T) {
	srv := newOCRServer(t, "Invoice body\nDOC-12345 | Page 3 of 10 | 2024-05-01")
	cfg := testConfig(t, srv.URL)
	writePage(t, cfg.Input.Directory, "page-003.png")

	store, err := runlog.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runID := uuid.NewString()
	require.NoError(t, store.BeginRun(context.Background(), runID))

	p := newTestPipeline(t, cfg, store)
	status, err := p.UnitOfWork(context.Background(), runID)()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, "page-003.yaml"))
	require.NoError(t, err)

	var result Result
	require.NoError(t, yaml.Unmarshal(data, &result))
	assert.Equal(t, "DOC-12345", result.Footer.DocumentID)
	assert.Equal(t, 3, result.Footer.Page)
	assert.Equal(t, 10, result.Footer.PageCount)

	docs, err := store.Documents(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok", docs[0].Outcome)
	assert.Equal(t, 1, docs[0].Attempts)
}

func TestRunPropagatesParseFailure(t *testing.T) {
	srv := newOCRServer(t, "no footer here, just prose")
	cfg := testConfig(t, srv.URL)
	writePage(t, cfg.Input.Directory, "page-001.png")

	store, err := runlog.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runID := uuid.NewString()
	require.NoError(t, store.BeginRun(context.Background(), runID))

	p := newTestPipeline(t, cfg, store)
	_, err = p.UnitOfWork(context.Background(), runID)()
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindContentProcessing))

	docs, derr := store.Documents(context.Background(), runID)
	require.NoError(t, derr)
	require.Len(t, docs, 1)
	assert.Equal(t, "failed", docs[0].Outcome)
	assert.Equal(t, "doc.processing", docs[0].ErrorCode)
}

func TestRunPropagatesConnectionFailure(t *testing.T) {
	srv := newOCRServer(t, "irrelevant")
	addr := srv.URL
	srv.Close() // refuse connections

	cfg := testConfig(t, addr)
	writePage(t, cfg.Input.Directory, "page-001.png")

	p := newTestPipeline(t, cfg, nil)
	_, err := p.UnitOfWork(context.Background(), uuid.NewString())()
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindNetworkConnection))
}

func TestRunCountsAttemptsAcrossRetries(t *testing.T) {
	srv := newOCRServer(t, "Invoice\nDOC-1 | Page 1 of 1 | 2024-05-01")
	cfg := testConfig(t, srv.URL)
	doc := writePage(t, cfg.Input.Directory, "page-001.png")

	store, err := runlog.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runID := uuid.NewString()
	require.NoError(t, store.BeginRun(context.Background(), runID))

	p := newTestPipeline(t, cfg, store)
	work := p.UnitOfWork(context.Background(), runID)

	// Simulate a boundary retry: two invocations of the same unit of work.
	_, err = work()
	require.NoError(t, err)
	_, err = work()
	require.NoError(t, err)

	docs, derr := store.Documents(context.Background(), runID)
	require.NoError(t, derr)
	require.Len(t, docs, 2)
	assert.Equal(t, doc, docs[1].Document)
	assert.Equal(t, 2, docs[1].Attempts)
}

func TestEmptyBatchSucceeds(t *testing.T) {
	srv := newOCRServer(t, "irrelevant")
	cfg := testConfig(t, srv.URL)

	p := newTestPipeline(t, cfg, nil)
	status, err := p.UnitOfWork(context.Background(), uuid.NewString())()
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}
