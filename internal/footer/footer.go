// Package footer locates and parses the footer line of OCR'd page text.
//
// Scanned documents in this pipeline stamp each page with a footer of the
// form:
//
//	DOC-12345 | Page 3 of 10 | 2024-05-01
//
// OCR output is NFC-normalized before matching because engines routinely emit
// decomposed code points for accented characters.
package footer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Metadata is the parsed footer content of one page.
type Metadata struct {
	DocumentID string    `yaml:"document_id"`
	Page       int       `yaml:"page"`
	PageCount  int       `yaml:"page_count"`
	IssuedOn   time.Time `yaml:"issued_on"`
}

// ErrNoFooter is returned when no candidate footer line exists in the text.
var ErrNoFooter = errors.New("no footer line found")

var footerPattern = regexp.MustCompile(
	`^(?P<doc>[A-Z]{2,8}-[0-9]{1,10})\s*\|\s*Page\s+(?P<page>[0-9]+)\s+of\s+(?P<count>[0-9]+)\s*\|\s*(?P<date>[0-9]{4}-[0-9]{2}-[0-9]{2})$`,
)

// Extract returns the footer line of the OCR text: the last non-empty line,
// NFC-normalized and whitespace-trimmed.
func Extract(text string) (string, error) {
	lines := strings.Split(norm.NFC.String(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return line, nil
		}
	}
	return "", ErrNoFooter
}

// Parse parses a footer line into its metadata.
func Parse(line string) (Metadata, error) {
	m := footerPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Metadata{}, fmt.Errorf("footer line %q does not match the expected format", line)
	}

	page, err := strconv.Atoi(m[2])
	if err != nil {
		return Metadata{}, fmt.Errorf("footer page number %q: %w", m[2], err)
	}
	count, err := strconv.Atoi(m[3])
	if err != nil {
		return Metadata{}, fmt.Errorf("footer page count %q: %w", m[3], err)
	}
	if page < 1 || count < 1 || page > count {
		return Metadata{}, fmt.Errorf("footer page %d of %d is out of range", page, count)
	}

	issued, err := time.Parse("2006-01-02", m[4])
	if err != nil {
		return Metadata{}, fmt.Errorf("footer date %q: %w", m[4], err)
	}

	return Metadata{
		DocumentID: m[1],
		Page:       page,
		PageCount:  count,
		IssuedOn:   issued,
	}, nil
}

// ExtractAndParse is the combined heuristic used by the pipeline.
func ExtractAndParse(text string) (Metadata, error) {
	line, err := Extract(text)
	if err != nil {
		return Metadata{}, err
	}
	return Parse(line)
}
