package chunker

import "fmt"

// Default window parameters, in characters.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// SlidingChunker splits text into fixed-size character windows where each
// window shares its leading characters with the tail of the previous one.
// Boundaries are purely positional and never respect sentence or paragraph
// structure.
type SlidingChunker struct {
	size    int
	overlap int
}

// New creates a sliding-window chunker. overlap must be smaller than size,
// otherwise the window would never advance.
func New(size, overlap int) (*SlidingChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &SlidingChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping windows. Empty text yields nil.
func (c *SlidingChunker) Chunk(text string) []string {
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}
