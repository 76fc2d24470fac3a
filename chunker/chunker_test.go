package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble drops each chunk's overlap with its predecessor and joins the
// rest. A tail shorter than the overlap is already covered.
func reassemble(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		r := []rune(c)
		sb.WriteString(string(r[min(overlap, len(r)):]))
	}
	return sb.String()
}

func runeLens(chunks []string) []int {
	lens := make([]int, len(chunks))
	for i, c := range chunks {
		lens[i] = utf8.RuneCountInString(c)
	}
	return lens
}

func TestSplit_InvalidWindow(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{
		{0, 0}, {-1, 0}, {10, 10}, {10, 11}, {10, -1},
	} {
		_, err := Split("text", tc.size, tc.overlap)
		assert.ErrorIs(t, err, ErrInvalidWindow, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("Short text.", 1000, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Short text."}, chunks)

	chunks, err = Split(strings.Repeat("x", 1000), 1000, 100)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestSplit_NoPeriods(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 1000, 700}, runeLens(chunks))
	assert.Equal(t, text, reassemble(chunks, 100))
}

func TestSplit_TailInsideOverlap(t *testing.T) {
	tests := []struct {
		length int
		want   []int
	}{
		{1850, []int{1000, 950, 50}},
		{1900, []int{1000, 1000, 100}},
		{1950, []int{1000, 1000, 150}},
		{2500, []int{1000, 1000, 700}},
	}
	for _, tt := range tests {
		text := strings.Repeat("a", tt.length)
		chunks, err := Split(text, 1000, 100)
		require.NoError(t, err)
		assert.Equal(t, tt.want, runeLens(chunks), "length %d", tt.length)
		assert.Equal(t, text, reassemble(chunks, 100), "length %d", tt.length)
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := strings.Repeat("a", 799) + "." + strings.Repeat("b", 700)

	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.True(t, strings.HasSuffix(chunks[0], "."))
	assert.Equal(t, []int{800, 800}, runeLens(chunks))
	assert.Equal(t, text, reassemble(chunks, 100))
}

func TestSplit_PeriodInFirstHalfIgnored(t *testing.T) {
	text := strings.Repeat("a", 300) + "." + strings.Repeat("b", 1199)

	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 600}, runeLens(chunks))
	assert.Equal(t, text, reassemble(chunks, 100))
}

func TestSplit_ForwardProgressWithLargeOverlap(t *testing.T) {
	text := "abcdef.ghijklmnopqrst"

	chunks, err := Split(text, 10, 8)
	require.NoError(t, err)

	assert.Equal(t, "abcdef.ghi", chunks[0])
	assert.Equal(t, text, reassemble(chunks, 8))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 120)

	a, err := Split(text, 500, 50)
	require.NoError(t, err)
	b, err := Split(text, 500, 50)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, text, reassemble(a, 50))
}

func TestSplit_ChunkCountBound(t *testing.T) {
	text := strings.Repeat("z", 9999)
	size, overlap := 700, 200

	chunks, err := Split(text, size, overlap)
	require.NoError(t, err)

	step := size - overlap
	assert.LessOrEqual(t, len(chunks), (len(text)+step-1)/step)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), size)
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("é", 2500)

	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 1000, 700}, runeLens(chunks))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, text, reassemble(chunks, 100))
}
