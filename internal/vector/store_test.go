package vector

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryIndex mirrors the store's retrieval contract: descending cosine
// similarity, insertion order on ties, limited to k results.
type memoryIndex struct {
	ids  []string
	vecs [][]float32
}

func (m *memoryIndex) add(id string, v []float32) {
	m.ids = append(m.ids, id)
	m.vecs = append(m.vecs, v)
}

func (m *memoryIndex) search(query []float32, k int) []string {
	idx := make([]int, len(m.ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return CosineSimilarity(query, m.vecs[idx[a]]) > CosineSimilarity(query, m.vecs[idx[b]])
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.ids[i])
	}
	return out
}

func TestToLiteral(t *testing.T) {
	require.Equal(t, "[1.000000,-0.500000]", ToLiteral([]float32{1, -0.5}))
	require.Equal(t, "[]", ToLiteral(nil))
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	require.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestCosineSimilarityRanksCloserVectorsHigher(t *testing.T) {
	query := []float32{0.9, 0.1, 0}
	near := []float32{1, 0, 0}
	far := []float32{0, 1, 0}
	require.Greater(t, CosineSimilarity(query, near), CosineSimilarity(query, far))
}

func TestSearchOrderMatchesCosineRanking(t *testing.T) {
	query := []float32{1, 0, 0}

	m := &memoryIndex{}
	m.add("orthogonal", []float32{0, 1, 0}) // similarity 0
	m.add("close", []float32{0.8, 0.6, 0})  // similarity 0.8
	m.add("exact", []float32{1, 0, 0})      // similarity 1
	m.add("opposite", []float32{-1, 0, 0})  // similarity -1
	m.add("close-dup", []float32{0.8, 0.6, 0})

	// Hand-computed ranking by descending similarity; the duplicate vector
	// ties with "close" and must stay behind it by insertion order.
	require.Equal(t,
		[]string{"exact", "close", "close-dup", "orthogonal", "opposite"},
		m.search(query, 5))
	require.Equal(t, []string{"exact", "close"}, m.search(query, 2))
}
