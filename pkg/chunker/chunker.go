package chunker

import (
	"strings"

	"github.com/xhad/finsight/internal/runes"
)

// Section headers that indicate important financial information. Paragraphs
// containing one of these tend to open a new logical section, which is why
// paragraph-boundary chunking beats blind fixed-width slicing on reports.
var sectionHeaders = []string{
	"Financial Results", "Revenue", "Income Statement", "Financial Performance",
	"Key Metrics", "Financial Highlights", "Revenue and Sales", "Financial Summary",
	"Consolidated Statements", "Management Discussion", "Results of Operations",
	"Financial Condition", "Cash Flow", "Balance Sheet", "Profit and Loss",
	"Earnings", "EBIT", "EBITDA", "Net Income", "Gross Revenue", "Total Revenue",
}

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1200
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 300
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}

	return Chunker{config: config}
}

// Chunk splits text into overlapping chunks, preferring paragraph
// boundaries over fixed-width cuts. A paragraph opening a known financial
// section closes the current chunk early so each section starts its own
// chunk. Any chunk growing past twice the configured size is re-split
// fixed-width to bound the worst case. If paragraph splitting produces
// nothing, the whole text falls back to fixed-width windowing. Empty input
// produces no chunks.
func (c *Chunker) Chunk(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	current := ""

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		full := len(current)+len(paragraph) > c.config.ChunkSize
		// Only close at a header if the buffer could at least seed the
		// overlap, so a run of headers does not shed tiny fragments.
		section := IsSectionHeader(paragraph) && len(current) >= c.config.ChunkOverlap

		if current != "" && (full || section) {
			chunks = append(chunks, strings.TrimSpace(current))
			// Seed the next chunk with the tail of the closed one so figures
			// straddling a boundary stay retrievable from both sides.
			overlap := current
			if len(current) > c.config.ChunkOverlap {
				overlap = runes.Tail(current, c.config.ChunkOverlap)
			}
			current = overlap + "\n\n" + paragraph
		} else {
			if current != "" {
				current += "\n\n" + paragraph
			} else {
				current = paragraph
			}
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// Bound the worst case: re-split anything over twice the target size.
	var final []string
	for _, chunk := range chunks {
		if len(chunk) > c.config.ChunkSize*2 {
			final = append(final, c.fixedChunks(chunk)...)
		} else {
			final = append(final, chunk)
		}
	}

	if len(final) == 0 {
		return c.fixedChunks(text)
	}

	return final
}

// fixedChunks is plain fixed-width windowing with the configured overlap.
// Window edges are moved to rune boundaries so multi-byte text is never cut
// mid-rune.
func (c *Chunker) fixedChunks(text string) []string {
	var chunks []string

	step := c.config.ChunkSize - c.config.ChunkOverlap
	if step < 1 {
		step = c.config.ChunkSize
	}

	for start := 0; start < len(text); start += step {
		from := runes.Ceil(text, start)
		end := runes.Floor(text, start+c.config.ChunkSize)
		if from >= end {
			continue
		}
		chunk := strings.TrimSpace(text[from:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

// IsSectionHeader reports whether a paragraph mentions one of the known
// financial section headers.
func IsSectionHeader(paragraph string) bool {
	lower := strings.ToLower(paragraph)
	for _, header := range sectionHeaders {
		if strings.Contains(lower, strings.ToLower(header)) {
			return true
		}
	}
	return false
}
