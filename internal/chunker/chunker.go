// Package chunker splits document text into bounded-size passages for
// embedding. Paragraphs within the size limit pass through whole; longer
// paragraphs are cut with an overlapping sliding window so no passage loses
// its surrounding context entirely.
package chunker

import (
	"fmt"
	"strings"
)

// Default window parameters, matching the ingestion defaults used across
// the pipeline.
const (
	// DefaultMaxChars is the maximum passage length in characters.
	DefaultMaxChars = 1000
	// DefaultOverlap is the number of characters shared between consecutive
	// windows of an oversized paragraph.
	DefaultOverlap = 200
)

// Config holds the splitter parameters.
type Config struct {
	// MaxChars is the maximum passage length. Defaults to DefaultMaxChars if zero.
	MaxChars int
	// Overlap is the window overlap in characters. Must be smaller than
	// MaxChars. Defaults to DefaultOverlap when MaxChars is also left at
	// its default; an explicit MaxChars with zero Overlap means no overlap.
	Overlap int
}

// Chunker is a stateless passage splitter. Safe for concurrent use.
type Chunker struct {
	maxChars int
	overlap  int
}

// New validates cfg and constructs a Chunker. An overlap greater than or
// equal to the maximum length is rejected: it would produce a zero or
// negative window advance and the split would never terminate.
func New(cfg Config) (*Chunker, error) {
	maxChars := cfg.MaxChars
	if maxChars == 0 {
		maxChars = DefaultMaxChars
	}
	overlap := cfg.Overlap
	if overlap == 0 && cfg.MaxChars == 0 {
		overlap = DefaultOverlap
	}

	if maxChars <= 0 {
		return nil, fmt.Errorf("chunker: max chars must be positive, got %d", maxChars)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxChars {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than max chars %d", overlap, maxChars)
	}

	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// Split cuts text into ordered, non-empty passages. The input is split on
// blank-line boundaries into paragraphs; trimmed empty paragraphs are
// dropped. Paragraphs within the limit are emitted whole. Longer paragraphs
// emit windows of maxChars advancing by maxChars-overlap, with the final
// window trimmed to the paragraph tail rather than padded.
func (c *Chunker) Split(text string) []string {
	var passages []string

	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		// Window over runes, not bytes: the limits are character counts and
		// a byte-indexed cut would split multi-byte text mid-rune.
		runes := []rune(p)
		if len(runes) <= c.maxChars {
			passages = append(passages, p)
			continue
		}

		step := c.maxChars - c.overlap
		for start := 0; start < len(runes); start += step {
			end := start + c.maxChars
			if end > len(runes) {
				end = len(runes)
			}
			window := strings.TrimSpace(string(runes[start:end]))
			if window != "" {
				passages = append(passages, window)
			}
			if end == len(runes) {
				break
			}
		}
	}

	return passages
}

// MaxChars returns the configured maximum passage length.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }
