package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicTokens(t *testing.T) {
	got := basicTokens("Hello, World! v2.0")
	assert.Equal(t, []string{"hello", ",", "world", "!", "v2", ".", "0"}, got)
}

func testVocabBackend() *onnxBackend {
	b := &onnxBackend{seqLen: 16}
	b.vocab = map[string]int64{
		"[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3,
		"un": 4, "##afford": 5, "##able": 6, "leave": 7, "policy": 8,
	}
	b.padID, b.unkID, b.clsID, b.sepID = 0, 1, 2, 3
	return b
}

func TestWordpieceGreedyMatch(t *testing.T) {
	b := testVocabBackend()
	ids := b.wordpiece([]string{"unaffordable", "leave", "zzz"})
	assert.Equal(t, []int64{4, 5, 6, 7, 1}, ids)
}

func TestEncodeFraming(t *testing.T) {
	b := testVocabBackend()
	ids, mask := b.encode("leave policy")
	require.Len(t, ids, 16)

	assert.Equal(t, []int64{2, 7, 8, 3}, ids[:4])
	assert.Equal(t, []int64{1, 1, 1, 1}, mask[:4])
	assert.Equal(t, int64(0), ids[4])
	assert.Equal(t, int64(0), mask[4])
}

func TestEncodeTruncates(t *testing.T) {
	b := testVocabBackend()
	b.seqLen = 6
	ids, mask := b.encode("leave policy leave policy leave policy leave")
	require.Len(t, ids, 6)
	assert.Equal(t, int64(2), ids[0])
	assert.Equal(t, int64(3), ids[5])
	for _, m := range mask {
		assert.Equal(t, int64(1), m)
	}
}

func TestMeanPoolRespectsMask(t *testing.T) {
	// two attended positions out of three; hidden size 2
	data := []float32{1, 2, 3, 4, 100, 100}
	vec := meanPool(data, 3, 2, []int64{1, 1, 0})
	assert.InDelta(t, 2.0, vec[0], 1e-6)
	assert.InDelta(t, 3.0, vec[1], 1e-6)
}

func TestL2Normalize(t *testing.T) {
	vec := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	zero := l2Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestResolveOutputShape(t *testing.T) {
	b := &onnxBackend{seqLen: 128}

	shape, err := b.resolveOutputShape([]int64{-1, -1, 384})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 128, 384}, shape)

	shape, err = b.resolveOutputShape([]int64{-1, 768})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 768}, shape)

	_, err = b.resolveOutputShape([]int64{-1, -1})
	assert.Error(t, err)
}
