// Package chunking implements the Document Processor: splitting loaded
// document text into Chunks and computing their structural metadata,
// grounded on the teacher's text-splitter processors under
// ai/content/document/processors but generalized to the entropy-adaptive
// overlap and agentic strategies this engine requires.
package chunking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

// defaultSeparators mirrors the recursive-splitter fallback chain: try to
// break on paragraph boundaries first, then lines, then sentences, then
// words, never inside a sentence unless forced to.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)
var headingLine = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)

// Splitter turns a document's full text into Chunks.
type Splitter struct {
	cfg config.ChunkingConfig
	llm AgenticBackend
}

// AgenticBackend is the narrow capability the agentic chunking strategy
// needs: a single free-form completion call.
type AgenticBackend interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}

// New builds a Splitter from a validated ChunkingConfig. llm may be nil
// unless cfg.Strategy is agentic.
func New(cfg config.ChunkingConfig, llm AgenticBackend) *Splitter {
	separators := cfg.Separators
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	cfg.Separators = separators
	return &Splitter{cfg: cfg, llm: llm}
}

// Split produces the ordered Chunks for a document's full text. It never
// returns an empty slice for non-empty text.
func (s *Splitter) Split(ctx context.Context, text string) ([]document.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	recursive := s.recursiveWindows(text)

	var windows []string
	if s.cfg.Strategy == config.ChunkingAgentic && s.llm != nil {
		for _, w := range recursive {
			props, err := s.agenticPropositions(ctx, w)
			if err != nil || len(props) == 0 {
				windows = append(windows, w)
				continue
			}
			windows = append(windows, props...)
		}
	} else {
		windows = recursive
	}

	chunks := make([]document.Chunk, 0, len(windows))
	cursor := 0
	for i, w := range windows {
		start := indexFrom(text, w, cursor)
		if start < 0 {
			start = 0
		} else {
			cursor = start
		}
		end := start + len(w)

		sum := sha256.Sum256([]byte(w))
		chunks = append(chunks, document.Chunk{
			Content:    w,
			Position:   document.Position{Start: start, End: end},
			ChunkIndex: i,
			SHA256:     hex.EncodeToString(sum[:]),
		})
	}
	return chunks, nil
}

// indexFrom finds needle in haystack starting the scan at from, falling
// back to a full scan if nothing is found from that point on — the
// "sequential indexOf scan advancing a cursor" position-recovery strategy.
func indexFrom(haystack, needle string, from int) int {
	if from > len(haystack) {
		from = 0
	}
	if i := strings.Index(haystack[from:], needle); i >= 0 {
		return from + i
	}
	return strings.Index(haystack, needle)
}

// recursiveWindows splits text into overlapping windows of at most
// cfg.ChunkSize runes, breaking on the first available separator and
// widening overlap by the Shannon entropy of the window just emitted.
// Windows are cut short at that separator and are not extended to reach
// cfg.ChunkSize.
func (s *Splitter) recursiveWindows(text string) []string {
	size := s.cfg.ChunkSize
	baseOverlap := s.cfg.ChunkOverlap
	if size <= 0 {
		size = 1000
	}

	var windows []string
	runes := []rune(text)
	pos := 0
	for pos < len(runes) {
		end := min(pos+size, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, pos, end, s.cfg.Separators)
		}
		window := strings.TrimSpace(string(runes[pos:end]))
		if window != "" {
			windows = append(windows, window)
		}

		if end >= len(runes) {
			break
		}

		overlap := adaptiveOverlap(window, baseOverlap, size)
		next := end - overlap
		if next <= pos {
			next = end
		}
		pos = next
	}
	return windows
}

// breakPoint searches backward from end for the last occurrence of any
// separator, preferring earlier entries in seps (paragraph over line over
// sentence over word). It never returns a point before start+1.
func breakPoint(runes []rune, start, end int, seps []string) int {
	window := string(runes[start:end])
	for _, sep := range seps {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(sep)
		}
	}
	return end
}

// adaptiveOverlap widens the base overlap by the Shannon entropy of the
// window just emitted: overlap = min(baseOverlap + floor(H*50), chunkSize/3).
func adaptiveOverlap(window string, baseOverlap, chunkSize int) int {
	h := shannonEntropy(window)
	overlap := baseOverlap + int(math.Floor(h*50))
	cap := chunkSize / 3
	if overlap > cap {
		overlap = cap
	}
	if overlap < 0 {
		overlap = 0
	}
	return overlap
}

// shannonEntropy computes the entropy in bits over the character-frequency
// distribution of s.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	n := float64(len([]rune(s)))

	var h float64
	for _, count := range freq {
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

// ComputeMetadata fills in the structural fields of a ChunkMetadata given
// the chunk's position within the full document text and, for paged
// formats, the per-page text slices.
func ComputeMetadata(fullText string, pages []string, chunk document.Chunk, fileType, docTitle string) document.ChunkMetadata {
	md := document.ChunkMetadata{
		FileType: fileType,
		DocTitle: docTitle,
		Section:  nearestHeading(fullText, chunk.Position.Start),
	}

	if len(pages) > 0 {
		from, to := pagesFor(pages, chunk.Position.Start, chunk.Position.End)
		md.PageFrom = from
		md.PageTo = to
	}
	return md
}

// nearestHeading returns the text of the most recent markdown heading
// (# through ######) whose start offset is <= pos, or "" if none.
func nearestHeading(text string, pos int) string {
	matches := headingLine.FindAllStringSubmatchIndex(text, -1)
	best := ""
	for _, m := range matches {
		if m[0] > pos {
			break
		}
		best = strings.TrimSpace(text[m[4]:m[5]])
	}
	return best
}

// pagesFor maps a chunk's [start,end) byte span onto 1-based page numbers
// via a cumulative scan over page lengths, clamped to at least page 1.
func pagesFor(pages []string, start, end int) (from, to int) {
	cursor := 0
	from, to = 1, 1
	for i, p := range pages {
		pageStart := cursor
		pageEnd := cursor + len(p)
		page := i + 1

		if start >= pageStart && start < pageEnd+1 {
			from = page
		}
		if end > pageStart && end <= pageEnd+1 {
			to = page
		}
		cursor = pageEnd
	}
	if from < 1 {
		from = 1
	}
	if to < from {
		to = from
	}
	return from, to
}

// agenticPropositions asks the configured LLM to split one recursive window
// into a flat JSON array of atomic propositions. On any backend or parse
// failure it returns (nil, err) so the caller falls back to that window
// unchanged, never to the whole document.
func (s *Splitter) agenticPropositions(ctx context.Context, text string) ([]string, error) {
	prompt := agenticPrompt(text)
	raw, err := s.llm.Generate(ctx, prompt, agenticSystemPrompt)
	if err != nil {
		return nil, err
	}

	props, err := parsePropositions(raw)
	if err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(props))
	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		p = collapseWhitespace(strings.TrimSpace(p))
		if len([]rune(p)) < 2 {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return nil, errEmptyPropositions
	}
	return cleaned, nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

const agenticSystemPrompt = "You split documents into atomic, self-contained propositions for retrieval indexing."

func agenticPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Split the following text into a JSON array of short, self-contained propositions. ")
	b.WriteString("Respond with only the JSON array, no prose.\n\n")
	b.WriteString(text)
	return b.String()
}
