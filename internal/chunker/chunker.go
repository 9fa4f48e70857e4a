package chunker

import (
	"strings"

	"github.com/dgallion1/lawsearch/internal/division"
)

// Config controls chunking behavior. Sizes are in runes.
type Config struct {
	ChunkSize    int // Maximum chunk length.
	ChunkOverlap int // Runes shared by consecutive chunks.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
	}
}

func (c Config) normalized() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 0
	}
	return c
}

// Split breaks text into fixed-size windows that overlap by ChunkOverlap.
// Boundaries depend only on rune positions, never on sentence structure,
// so the same input always yields the same chunks.
func Split(text string, cfg Config) []string {
	cfg = cfg.normalized()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := cfg.ChunkSize - cfg.ChunkOverlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+cfg.ChunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// ChunkDivision splits a division's text into sequenced chunks.
func ChunkDivision(label, text string, cfg Config) []division.Chunk {
	parts := Split(text, cfg)
	chunks := make([]division.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = division.Chunk{
			Text:          p,
			DivisionLabel: label,
			Sequence:      i,
		}
	}
	return chunks
}
