package footer

import (
	"errors"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	t.Run("Last non-empty line wins", func(t *testing.T) {
		line, err := Extract("Invoice body\nmore text\n\nDOC-12345 | Page 3 of 10 | 2024-05-01\n\n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if line != "DOC-12345 | Page 3 of 10 | 2024-05-01" {
			t.Errorf("unexpected footer line %q", line)
		}
	})

	t.Run("Empty text", func(t *testing.T) {
		if _, err := Extract("\n\n  \n"); !errors.Is(err, ErrNoFooter) {
			t.Fatalf("expected ErrNoFooter, got %v", err)
		}
	})

	t.Run("NFC normalization", func(t *testing.T) {
		// "é" as e + combining acute accent; must normalize to a single rune.
		line, err := Extract("résumé\nDOC-1 | Page 1 of 1 | 2024-05-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if line != "DOC-1 | Page 1 of 1 | 2024-05-01" {
			t.Errorf("unexpected footer line %q", line)
		}
	})
}

func TestParse(t *testing.T) {
	meta, err := Parse("DOC-12345 | Page 3 of 10 | 2024-05-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.DocumentID != "DOC-12345" {
		t.Errorf("unexpected document id %q", meta.DocumentID)
	}
	if meta.Page != 3 || meta.PageCount != 10 {
		t.Errorf("unexpected page %d of %d", meta.Page, meta.PageCount)
	}
	if !meta.IssuedOn.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", meta.IssuedOn)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"plain text", "just some text"},
		{"missing date", "DOC-12345 | Page 3 of 10"},
		{"page beyond count", "DOC-12345 | Page 11 of 10 | 2024-05-01"},
		{"zero page", "DOC-12345 | Page 0 of 10 | 2024-05-01"},
		{"bad date", "DOC-12345 | Page 3 of 10 | 2024-13-45"},
		{"lowercase prefix", "doc-12345 | Page 3 of 10 | 2024-05-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.line); err == nil {
				t.Fatalf("expected %q to be rejected", tc.line)
			}
		})
	}
}

func TestExtractAndParse(t *testing.T) {
	meta, err := ExtractAndParse("body\nDOC-7 | Page 1 of 2 | 2023-11-30\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.DocumentID != "DOC-7" || meta.Page != 1 {
		t.Errorf("unexpected metadata %+v", meta)
	}
}
