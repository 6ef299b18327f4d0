package services

import (
	"regexp"
	"strconv"
	"strings"
)

// charsPerToken is the fixed ratio used to convert token budgets to
// character budgets. This is an approximation, not a real tokenizer.
const charsPerToken = 4

// minOverlapHeadroom keeps the overlap well below the target size so a
// seeded buffer always has room for new content (no zero-progress loops).
const minOverlapHeadroom = 100

// MetadataParentIndex carries the pre-split chunk index when recursive
// chunking re-splits an oversized chunk.
const MetadataParentIndex = "parent_index"

var paragraphRegex = regexp.MustCompile(`\n\s*\n+`)

// TextChunk is one retrievable unit produced by the chunker. Indices
// are dense and zero-based in emission order.
type TextChunk struct {
	Content  string
	Index    int
	Metadata map[string]string
}

// ChunkingService splits source text into overlapping chunks sized for
// embedding. Target size and overlap are deployment constants so every
// source in a store is comparably indexed.
type ChunkingService struct {
	targetSize int
	overlap    int
}

// NewChunkingService creates a chunking service with the given target
// chunk size and overlap, both in characters.
func NewChunkingService(targetSize, overlap int) *ChunkingService {
	return &ChunkingService{
		targetSize: targetSize,
		overlap:    overlap,
	}
}

// ChunkText splits text into paragraph-packed chunks using the
// configured target size and overlap. Empty or whitespace-only text
// yields no chunks; that is not an error.
func (cs *ChunkingService) ChunkText(text string, metadata map[string]string) []TextChunk {
	return chunkParagraphs(text, cs.targetSize, cs.overlap, metadata)
}

// ChunkByApproxTokens converts a token budget to a character budget at
// a fixed characters-per-token ratio and delegates to the paragraph
// packer. Approximation only; no real tokenizer is involved.
func (cs *ChunkingService) ChunkByApproxTokens(text string, maxTokens, overlapTokens int, metadata map[string]string) []TextChunk {
	return chunkParagraphs(text, maxTokens*charsPerToken, overlapTokens*charsPerToken, metadata)
}

// ChunkRecursive chunks text and then re-splits any chunk still longer
// than maxChunkSize, so that no returned chunk exceeds maxChunkSize.
// Re-split chunks carry a parent_index metadata entry pointing at the
// first-pass chunk they came from. Output indices are re-assigned
// densely across the whole expansion.
func (cs *ChunkingService) ChunkRecursive(text string, maxChunkSize int, metadata map[string]string) []TextChunk {
	overlap := maxChunkSize / 10
	initial := chunkParagraphs(text, maxChunkSize, overlap, metadata)

	out := make([]TextChunk, 0, len(initial))
	for _, chunk := range initial {
		if len(chunk.Content) <= maxChunkSize {
			out = append(out, chunk)
			continue
		}
		parent := strconv.Itoa(chunk.Index)
		for _, sub := range splitOversize(chunk.Content, maxChunkSize, overlap) {
			sub.Metadata = withParentIndex(metadata, parent)
			out = append(out, sub)
		}
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

// chunkParagraphs greedily packs blank-line-separated paragraphs into
// chunks of at most targetSize characters, seeding each new chunk with
// word-boundary-safe trailing text from the previous one. A single
// paragraph longer than targetSize becomes one oversized chunk; that
// overflow is accepted here and handled by ChunkRecursive.
func chunkParagraphs(text string, targetSize, overlap int, metadata map[string]string) []TextChunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []TextChunk{}
	}

	if len(trimmed) <= targetSize {
		return []TextChunk{{Content: trimmed, Index: 0, Metadata: metadata}}
	}

	// Clamp overlap so a seeded buffer can always make progress.
	if overlap > targetSize-minOverlapHeadroom {
		overlap = targetSize - minOverlapHeadroom
	}
	if overlap < 0 {
		overlap = 0
	}

	paragraphs := paragraphRegex.Split(trimmed, -1)

	var chunks []TextChunk
	buffer := new(strings.Builder)
	seedOnly := true // buffer holds only overlap seed, no full paragraph yet

	flush := func() {
		chunks = append(chunks, TextChunk{
			Content:  buffer.String(),
			Index:    len(chunks),
			Metadata: metadata,
		})
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		projected := buffer.Len() + len(paragraph)
		if buffer.Len() > 0 {
			projected += 2 // blank-line separator
		}

		// Emit the buffer when the next paragraph would overflow it, then
		// seed the next buffer with trailing words from the emitted chunk.
		// The seed allowance shrinks for large paragraphs so seed plus
		// paragraph still fits; only a paragraph that alone exceeds
		// targetSize may produce an oversized chunk.
		if projected > targetSize && buffer.Len() > 0 && !seedOnly {
			flush()

			previous := chunks[len(chunks)-1].Content
			buffer.Reset()
			seedOnly = true
			allowed := overlap
			if room := targetSize - len(paragraph) - 2; room < allowed {
				allowed = room
			}
			if allowed > 0 {
				if seed := trailingWords(previous, allowed); seed != "" {
					buffer.WriteString(seed)
				}
			}
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n\n")
		}
		buffer.WriteString(paragraph)
		seedOnly = false
	}

	if buffer.Len() > 0 && !seedOnly {
		flush()
	}

	return chunks
}

// trailingWords returns roughly the last `size` characters of text,
// never splitting mid-word.
func trailingWords(text string, size int) string {
	if len(text) <= size {
		return text
	}

	words := strings.Fields(text)
	total := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := len(words[i])
		if total > 0 {
			add++ // joining space
		}
		if total+add > size {
			break
		}
		total += add
		start = i
	}
	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}

// splitOversize breaks a chunk that exceeds maxChunkSize into pieces of
// at most maxChunkSize characters. Paragraph packing is tried first;
// when it cannot make progress (a single huge paragraph) the content is
// re-packed word by word, splitting raw only for words longer than the
// limit itself.
func splitOversize(content string, maxChunkSize, overlap int) []TextChunk {
	sub := chunkParagraphs(content, maxChunkSize, overlap, nil)

	progressed := len(sub) > 1
	for _, c := range sub {
		if len(c.Content) >= len(content) {
			progressed = false
			break
		}
	}
	if !progressed {
		return packWords(content, maxChunkSize, overlap)
	}

	var out []TextChunk
	for _, c := range sub {
		if len(c.Content) <= maxChunkSize {
			out = append(out, c)
			continue
		}
		out = append(out, splitOversize(c.Content, maxChunkSize, overlap)...)
	}
	return out
}

// packWords packs whitespace-separated words into chunks of at most
// maxChunkSize characters with a word-boundary overlap between
// consecutive chunks. Guaranteed to make forward progress: every chunk
// carries at least one word (or raw slice of an over-long word) that
// was not in the previous chunk.
func packWords(content string, maxChunkSize, overlap int) []TextChunk {
	if overlap > maxChunkSize-minOverlapHeadroom {
		overlap = maxChunkSize - minOverlapHeadroom
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []TextChunk
	buffer := new(strings.Builder)

	flush := func() {
		if buffer.Len() == 0 {
			return
		}
		chunks = append(chunks, TextChunk{Content: buffer.String(), Index: len(chunks)})
		seed := ""
		if overlap > 0 {
			seed = trailingWords(buffer.String(), overlap)
		}
		buffer.Reset()
		buffer.WriteString(seed)
	}

	for _, word := range strings.Fields(content) {
		// A single word longer than the limit is sliced raw; there is no
		// word boundary to respect inside it.
		for len(word) > maxChunkSize {
			flush()
			buffer.Reset()
			buffer.WriteString(word[:maxChunkSize])
			flush()
			buffer.Reset()
			word = word[maxChunkSize:]
		}
		if word == "" {
			continue
		}

		projected := buffer.Len() + len(word)
		if buffer.Len() > 0 {
			projected++
		}
		if projected > maxChunkSize {
			flush()
			// Drop the seed if even it plus the word would overflow.
			if buffer.Len() > 0 && buffer.Len()+1+len(word) > maxChunkSize {
				buffer.Reset()
			}
		}
		if buffer.Len() > 0 {
			buffer.WriteString(" ")
		}
		buffer.WriteString(word)
	}
	if buffer.Len() > 0 {
		chunks = append(chunks, TextChunk{Content: buffer.String(), Index: len(chunks)})
	}

	return chunks
}

func withParentIndex(metadata map[string]string, parent string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[MetadataParentIndex] = parent
	return out
}
