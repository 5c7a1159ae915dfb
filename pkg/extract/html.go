package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLExtractor pulls prose from HTML filings and renders every table as
// pipe-delimited rows under a trailing banner, so tabular figures survive
// into the chunker alongside the narrative text.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	doc.Find("script, style, noscript").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(collapseSpaces(s.Text()))
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	var tables []string
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		rendered := renderTable(table, i)
		if rendered != "" {
			tables = append(tables, rendered)
		}
	})

	combined := strings.Join(paragraphs, "\n\n")
	if len(tables) > 0 {
		combined += "\n\n" + strings.Repeat("=", 80) +
			"\nFINANCIAL TABLES AND DATA:\n" + strings.Repeat("=", 80) +
			"\n" + strings.Join(tables, "\n")
	}

	return strings.TrimSpace(combined), nil
}

// renderTable flattens one table to " | " delimited rows, skipping rows with
// no cell content.
func renderTable(table *goquery.Selection, tableNum int) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Table %d:", tableNum+1))
	lines = append(lines, strings.Repeat("=", 50))

	rows := 0
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		empty := true
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(collapseSpaces(cell.Text()))
			if text != "" {
				empty = false
			}
			cells = append(cells, text)
		})
		if !empty {
			lines = append(lines, strings.Join(cells, " | "))
			rows++
		}
	})

	// A table needs a header row plus data to be worth keeping.
	if rows < 2 {
		return ""
	}

	lines = append(lines, strings.Repeat("=", 50))
	return strings.Join(lines, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
