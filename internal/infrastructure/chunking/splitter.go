package chunking

import (
	"strings"
	"unicode"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

const (
	DefaultChunkSize = 2000
	DefaultOverlap   = 200
)

// Options controls window size and overlap, both counted in characters
// (Unicode code points).
type Options struct {
	MaxChunkSize int
	Overlap      int
}

func (o Options) normalized() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxChunkSize {
		o.Overlap = o.MaxChunkSize / 4
	}
	return o
}

type Splitter struct {
	opts Options
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{opts: Options{MaxChunkSize: chunkSize, Overlap: overlap}.normalized()}
}

func (s *Splitter) Split(text string) []domain.TextChunk {
	return ChunkText(text, s.opts)
}

// ChunkText collapses whitespace runs and cuts the text into windows of at
// most MaxChunkSize characters. A window is shortened to its last sentence
// end when that end lies past the window midpoint. Consecutive windows share
// Overlap characters. Text that fits one window yields exactly one chunk,
// even when empty.
func ChunkText(text string, opts Options) []domain.TextChunk {
	opts = opts.normalized()
	runes := []rune(normalizeWhitespace(text))
	n := len(runes)

	if n <= opts.MaxChunkSize {
		return []domain.TextChunk{{Index: 0, Text: string(runes)}}
	}

	chunks := make([]domain.TextChunk, 0, n/(opts.MaxChunkSize-opts.Overlap)+1)
	start := 0
	for start < n {
		end := start + opts.MaxChunkSize
		if end >= n {
			end = n
		} else if cut, ok := lastSentenceEnd(runes[start:end]); ok && start+cut > start+opts.MaxChunkSize/2 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, domain.TextChunk{Index: len(chunks), Text: chunk})
		}

		next := end - opts.Overlap
		if next >= n-opts.Overlap {
			break
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSentenceEnd returns the offset of the whitespace that follows the last
// '.', '!' or '?' in window, so that window[:offset] ends on the punctuation.
func lastSentenceEnd(window []rune) (int, bool) {
	for i := len(window) - 1; i > 0; i-- {
		if !unicode.IsSpace(window[i]) {
			continue
		}
		switch window[i-1] {
		case '.', '!', '?':
			return i, true
		}
	}
	return 0, false
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
