// Package extract obtains raw text blobs from corpus files. Each extractor
// returns a single blob containing both prose and any tabular data rendered
// as delimited text, which is all the chunker ever sees.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var yearPattern = regexp.MustCompile(`20\d{2}`)

// YearFromFilename returns the first four-digit year found in the filename,
// or 0 when the file carries no year.
func YearFromFilename(name string) int {
	match := yearPattern.FindString(name)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

// TextExtractor reads plain-text and markdown files verbatim, normalizing
// runs of blank lines so paragraph boundaries stay meaningful.
type TextExtractor struct{}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func (TextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n")), nil
}

// ForPath returns the extractor responsible for a file, or false when the
// extension is not supported.
func ForPath(path string) (Extractor, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md":
		return TextExtractor{}, true
	case ".html", ".htm":
		return HTMLExtractor{}, true
	}
	return nil, false
}

// Extractor matches types.Extractor; redeclared locally so the package has
// no dependency on the rest of the module.
type Extractor interface {
	Extract(path string) (string, error)
}
