// Package contracts loads externally authored classification contract
// documents and hydrates the immutable classify.Catalog from them. This is
// the only place the classification tables touch YAML; the catalog itself
// never parses configuration.
package contracts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"footerscan/internal/classify"
	"footerscan/internal/failures"
)

// Document is the on-disk shape of a classification contract.
type Document struct {
	// FallbackCode classifies failures whose kind has no mapping.
	FallbackCode string `yaml:"fallback_code"`

	// Codes declares every known error code with its metadata and optional
	// exit status.
	Codes []CodeEntry `yaml:"codes"`

	// Kinds maps taxonomy kind names to declared error codes.
	Kinds map[string]string `yaml:"kinds"`
}

// CodeEntry declares one error code.
type CodeEntry struct {
	Code      string `yaml:"code"`
	Transient bool   `yaml:"transient"`
	Message   string `yaml:"message,omitempty"`
	ExitCode  *int   `yaml:"exit_code,omitempty"`
}

// Load reads a contract document from path and builds the catalog.
// Environment variables in the document are expanded before parsing, matching
// the behavior of the main configuration loader.
func Load(path string) (*classify.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract document: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("parse contract document %s: %w", path, err)
	}

	return Hydrate(&doc)
}

// Hydrate validates a parsed document and builds the four catalog tables.
func Hydrate(doc *Document) (*classify.Catalog, error) {
	if doc.FallbackCode == "" {
		return nil, fmt.Errorf("contract must declare a fallback_code")
	}

	metadata := make(map[classify.ErrorCode]classify.Metadata, len(doc.Codes))
	exitCodes := make(map[classify.ErrorCode]int)
	for i, entry := range doc.Codes {
		if entry.Code == "" {
			return nil, fmt.Errorf("codes[%d]: code must not be empty", i)
		}
		code := classify.ErrorCode(entry.Code).Normalize()
		if _, dup := metadata[code]; dup {
			return nil, fmt.Errorf("codes[%d]: duplicate code %s", i, code)
		}
		metadata[code] = classify.Metadata{
			Code:           code,
			Transient:      entry.Transient,
			DefaultMessage: entry.Message,
		}
		if entry.ExitCode != nil {
			exitCodes[code] = *entry.ExitCode
		}
	}

	kindToCode := make(map[failures.Kind]classify.ErrorCode, len(doc.Kinds))
	for kind, rawCode := range doc.Kinds {
		if !failures.KnownKind(kind) {
			return nil, fmt.Errorf("kinds: %q is not a taxonomy kind", kind)
		}
		code := classify.ErrorCode(rawCode).Normalize()
		if _, declared := metadata[code]; !declared {
			return nil, fmt.Errorf("kinds: %s references undeclared code %s", kind, code)
		}
		kindToCode[failures.Kind(kind)] = code
	}

	fallback := classify.ErrorCode(doc.FallbackCode).Normalize()
	if _, declared := metadata[fallback]; !declared {
		return nil, fmt.Errorf("fallback_code %s is not declared in codes", fallback)
	}

	return classify.NewCatalog(kindToCode, metadata, exitCodes, fallback)
}

// Default returns the built-in contract document used by `footerscan init`
// and by runs without an explicit contract file.
func Default() *Document {
	exit := func(n int) *int { return &n }
	return &Document{
		FallbackCode: "app.unexpected",
		Codes: []CodeEntry{
			{Code: "io.file_access", Transient: true, Message: "Could not access a document file", ExitCode: exit(10)},
			{Code: "doc.processing", Transient: false, Message: "Document content could not be processed", ExitCode: exit(11)},
			{Code: "net.connection", Transient: true, Message: "OCR service is unreachable", ExitCode: exit(8)},
			{Code: "net.timeout", Transient: true, Message: "OCR request timed out", ExitCode: exit(9)},
			{Code: "io.serialization", Transient: false, Message: "Result serialization failed", ExitCode: exit(12)},
			{Code: "config.invalid", Transient: false, Message: "Configuration is invalid", ExitCode: exit(7)},
			{Code: "app.unexpected", Transient: false, Message: "Unexpected failure", ExitCode: exit(70)},
		},
		Kinds: map[string]string{
			string(failures.KindFileAccess):        "io.file_access",
			string(failures.KindContentProcessing): "doc.processing",
			string(failures.KindNetworkConnection): "net.connection",
			string(failures.KindOperationTimeout):  "net.timeout",
			string(failures.KindSerialization):     "io.serialization",
			string(failures.KindInvalidConfig):     "config.invalid",
		},
	}
}

// WriteExample renders the default contract document to path.
func WriteExample(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("contract document already exists: %s (use --force to overwrite)", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default contract: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
