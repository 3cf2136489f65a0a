package chunking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojirag/vectra/config"
	"github.com/kojirag/vectra/document"
)

func TestSplitter_Split_recursive(t *testing.T) {
	t.Run("empty text yields no chunks", func(t *testing.T) {
		s := New(config.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10}, nil)
		chunks, err := s.Split(context.Background(), "   ")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("short text yields a single chunk", func(t *testing.T) {
		s := New(config.ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 100}, nil)
		chunks, err := s.Split(context.Background(), "hello world.")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello world.", chunks[0].Content)
		assert.Equal(t, 0, chunks[0].ChunkIndex)
		assert.NotEmpty(t, chunks[0].SHA256)
	})

	t.Run("long text produces multiple ordered chunks with stable ids", func(t *testing.T) {
		text := ""
		for i := 0; i < 50; i++ {
			text += "This is sentence number filler text to pad the paragraph out. "
		}
		s := New(config.ChunkingConfig{ChunkSize: 200, ChunkOverlap: 20}, nil)

		chunks, err := s.Split(context.Background(), text)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		for i, c := range chunks {
			assert.Equal(t, i, c.ChunkIndex)
		}
	})

	t.Run("agentic without a backend falls back to recursive", func(t *testing.T) {
		s := New(config.ChunkingConfig{Strategy: config.ChunkingAgentic, ChunkSize: 50, ChunkOverlap: 5}, nil)
		chunks, err := s.Split(context.Background(), "a reasonably sized piece of input text for splitting")
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
	})

	t.Run("agentic calls the backend once per recursive window", func(t *testing.T) {
		backend := &perWindowBackend{fail: map[string]bool{}}
		s := New(config.ChunkingConfig{Strategy: config.ChunkingAgentic, ChunkSize: 20, ChunkOverlap: 2}, backend)

		text := "first window of text here. second window of text here. third window of text here."
		chunks, err := s.Split(context.Background(), text)
		require.NoError(t, err)
		assert.Greater(t, backend.calls, 1, "each recursive window gets its own agentic call")
		assert.NotEmpty(t, chunks)
	})
}

type perWindowBackend struct {
	calls int
	fail  map[string]bool
}

func (b *perWindowBackend) Generate(ctx context.Context, prompt, system string) (string, error) {
	b.calls++
	return `["a proposition", "another proposition"]`, nil
}

func TestAdaptiveOverlap(t *testing.T) {
	t.Run("overlap never exceeds chunkSize/3", func(t *testing.T) {
		overlap := adaptiveOverlap("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 10, 30)
		assert.LessOrEqual(t, overlap, 10)
	})

	t.Run("higher entropy text widens overlap relative to base", func(t *testing.T) {
		low := adaptiveOverlap("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 5, 3000)
		high := adaptiveOverlap("the quick brown fox jumps 42 times!", 5, 3000)
		assert.GreaterOrEqual(t, high, low)
	})
}

func TestComputeMetadata(t *testing.T) {
	t.Run("finds nearest preceding heading", func(t *testing.T) {
		text := "# Title\n\nintro text\n\n## Section Two\n\nbody content here"
		chunk := makeChunk(text, "body content here")

		md := ComputeMetadata(text, nil, chunk, "md", "doc")
		assert.Equal(t, "Section Two", md.Section)
		assert.False(t, md.HasPages())
	})

	t.Run("maps chunk position onto pages", func(t *testing.T) {
		pages := []string{"page one text", "page two text", "page three text"}
		full := pages[0] + pages[1] + pages[2]
		chunk := makeChunk(full, "page two text")

		md := ComputeMetadata(full, pages, chunk, "pdf", "doc")
		assert.True(t, md.HasPages())
		assert.Equal(t, 2, md.PageFrom)
	})
}

func makeChunk(fullText, content string) document.Chunk {
	idx := indexFrom(fullText, content, 0)
	return document.Chunk{
		Content:  content,
		Position: document.Position{Start: idx, End: idx + len(content)},
	}
}
