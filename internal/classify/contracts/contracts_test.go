package contracts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"footerscan/internal/classify"
	"footerscan/internal/failures"
)

const sampleContract = `
fallback_code: app.unexpected

codes:
  - code: io.file_access
    transient: true
    message: Could not access a document file
    exit_code: 10
  - code: config.invalid
    transient: false
    message: Configuration is invalid
    exit_code: 7
  - code: app.unexpected
    transient: false
    message: Unexpected failure
    exit_code: 70

kinds:
  file_access: io.file_access
  invalid_configuration: config.invalid
`

func writeContract(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cat, err := Load(writeContract(t, sampleContract))
	require.NoError(t, err)

	fa, ferr := failures.NewFileAccess("/scans/a.png", "read page image", nil)
	require.NoError(t, ferr)

	assert.Equal(t, classify.ErrorCode("io.file_access"), cat.MapFailureToErrorCode(fa))
	assert.True(t, cat.IsTransient(fa))
	assert.Equal(t, 10, cat.ResolveExitCode("io.file_access"))
	assert.Equal(t, classify.ErrorCode("app.unexpected"), cat.FallbackCode())

	// Kind without a mapping falls through to the fallback code and its exit.
	ser, ferr := failures.NewSerialization("yaml", "encode result", nil)
	require.NoError(t, ferr)
	assert.Equal(t, classify.ErrorCode("app.unexpected"), cat.MapFailureToErrorCode(ser))
	assert.Equal(t, 70, cat.ResolveExitCode(cat.MapFailureToErrorCode(ser)))
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("FS_FALLBACK", "app.unexpected")
	content := `
fallback_code: ${FS_FALLBACK}
codes:
  - code: app.unexpected
    exit_code: 70
kinds: {}
`
	cat, err := Load(writeContract(t, content))
	require.NoError(t, err)
	assert.Equal(t, classify.ErrorCode("app.unexpected"), cat.FallbackCode())
}

func TestHydrateValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
	}{
		{"missing fallback", &Document{Codes: []CodeEntry{{Code: "a.b"}}}},
		{"empty code", &Document{FallbackCode: "a.b", Codes: []CodeEntry{{Code: ""}}}},
		{"duplicate code", &Document{FallbackCode: "a.b", Codes: []CodeEntry{{Code: "a.b"}, {Code: "A.B"}}}},
		{"unknown kind", &Document{
			FallbackCode: "a.b",
			Codes:        []CodeEntry{{Code: "a.b"}},
			Kinds:        map[string]string{"gpu_meltdown": "a.b"},
		}},
		{"undeclared mapped code", &Document{
			FallbackCode: "a.b",
			Codes:        []CodeEntry{{Code: "a.b"}},
			Kinds:        map[string]string{"file_access": "missing.code"},
		}},
		{"undeclared fallback", &Document{
			FallbackCode: "missing.code",
			Codes:        []CodeEntry{{Code: "a.b"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Hydrate(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestDefaultDocumentHydrates(t *testing.T) {
	cat, err := Hydrate(Default())
	require.NoError(t, err)

	// Every taxonomy kind must be mapped by the shipped default contract.
	for _, kind := range failures.Kinds() {
		f := failureOfKind(t, kind)
		code := cat.MapFailureToErrorCode(f)
		assert.NotEqual(t, cat.FallbackCode(), code, "kind %s should have a dedicated code", kind)
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts.yaml")
	require.NoError(t, WriteExample(path, false))

	err := WriteExample(path, false)
	assert.Error(t, err, "expected second write without force to fail")
	require.NoError(t, WriteExample(path, true))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, classify.ErrorCode("app.unexpected"), cat.FallbackCode())
}

func failureOfKind(t *testing.T, kind failures.Kind) *failures.Failure {
	t.Helper()
	var f *failures.Failure
	var err error
	switch kind {
	case failures.KindFileAccess:
		f, err = failures.NewFileAccess("/a", "m", nil)
	case failures.KindContentProcessing:
		f, err = failures.NewContentProcessing("/a", "m", nil)
	case failures.KindNetworkConnection:
		f, err = failures.NewNetworkConnection("http://a", "m", nil)
	case failures.KindOperationTimeout:
		f, err = failures.NewOperationTimeout(1, "m", nil)
	case failures.KindSerialization:
		f, err = failures.NewSerialization("yaml", "m", nil)
	case failures.KindInvalidConfig:
		f, err = failures.NewInvalidConfig("d", "i", "m", nil)
	default:
		t.Fatalf("unhandled kind %s", kind)
	}
	require.NoError(t, err)
	return f
}
