package retrieval

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunker splits source text into overlapping chunks along paragraph and
// sentence boundaries where possible, falling back to hard cuts.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker() Chunker {
	return Chunker{Size: defaultChunkSize, Overlap: defaultChunkOverlap}
}

// Split breaks text into chunks of at most Size runes with Overlap runes of
// carryover between consecutive chunks.
func (c Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = defaultChunkSize
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			// overlap would stall the scan
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint backs the cut position up to the nearest paragraph, newline, or
// sentence boundary within the last quarter of the window.
func breakPoint(runes []rune, start, end int) int {
	minCut := start + (end-start)*3/4
	for i := end - 1; i > minCut; i-- {
		switch runes[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				return i + 1
			}
		}
	}
	for i := end - 1; i > minCut; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}
