package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func wordsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return out
}

func TestChunkWordsThousandWordDocument(t *testing.T) {
	chunks := ChunkWords(wordsN(1000), 400, 50)
	require.Len(t, chunks, 3)

	require.Equal(t, 0, chunks[0].WordStart)
	require.Equal(t, 400, chunks[0].WordEnd)
	require.Equal(t, 350, chunks[1].WordStart)
	require.Equal(t, 750, chunks[1].WordEnd)
	require.Equal(t, 700, chunks[2].WordStart)
	require.Equal(t, 1000, chunks[2].WordEnd)
}

func TestChunkWordsNeighborOverlap(t *testing.T) {
	const size, overlap = 400, 50
	chunks := ChunkWords(wordsN(1000), size, overlap)
	for i := 1; i < len(chunks); i++ {
		shared := chunks[i-1].WordEnd - chunks[i].WordStart
		require.Equal(t, overlap, shared, "window %d", i)

		prevTail := strings.Fields(chunks[i-1].Text)
		currHead := strings.Fields(chunks[i].Text)
		require.Equal(t, prevTail[len(prevTail)-overlap:], currHead[:overlap])
	}
}

func TestChunkWordsShortDocumentSingleWindow(t *testing.T) {
	chunks := ChunkWords(wordsN(120), 400, 50)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].WordStart)
	require.Equal(t, 120, chunks[0].WordEnd)
}

func TestChunkWordsEmpty(t *testing.T) {
	require.Empty(t, ChunkWords(nil, 400, 50))
	require.Empty(t, ChunkText("   \n\t ", 400, 50))
}

func TestChunkTextSanitizes(t *testing.T) {
	chunks := ChunkText("fever\x00 treatment guidance", 400, 50)
	require.Len(t, chunks, 1)
	require.Equal(t, "fever treatment guidance", chunks[0].Text)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc1", 0, "fever management basics", "v1")
	b := ChunkID("doc1", 0, "fever management basics", "v1")
	require.Equal(t, a, b)

	require.NotEqual(t, a, ChunkID("doc1", 1, "fever management basics", "v1"))
	require.NotEqual(t, a, ChunkID("doc1", 0, "different text", "v1"))
	require.NotEqual(t, a, ChunkID("doc1", 0, "fever management basics", "v2"))
}

func TestReingestionProducesIdenticalChunkSet(t *testing.T) {
	text := strings.Repeat("fever management requires rest fluids and monitoring ", 120)

	build := func() map[string]string {
		out := map[string]string{}
		for i, w := range ChunkText(text, 300, 50) {
			out[ChunkID("doc-a", i, w.Text, "v1")] = w.Text
		}
		return out
	}
	require.Equal(t, build(), build())
}
