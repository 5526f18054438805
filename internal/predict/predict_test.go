package predict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWordsRankedByFrequency(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	words, err := f.Words(context.Background(), "th", 3)
	require.NoError(t, err)
	require.Len(t, words, 3)
	// "the" and "that" outrank every other th- word in the list.
	require.Equal(t, "the", words[0])
	require.Equal(t, "that", words[1])
}

func TestWordsExcludesExactPrefix(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	words, err := f.Words(context.Background(), "the", 5)
	require.NoError(t, err)
	require.NotContains(t, words, "the")
	require.Contains(t, words, "their")
}

func TestWordsEmptyPrefixYieldsNothing(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	words, err := f.Words(context.Background(), "  ", 3)
	require.NoError(t, err)
	require.Empty(t, words)
}

func TestWordsRespectsCancelledContext(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Words(ctx, "t", 3)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLettersRankNextLetter(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	letters, err := f.Letters(context.Background(), "th", 3)
	require.NoError(t, err)
	require.NotEmpty(t, letters)
	// "the" dominates the th- mass, so 'e' must come first.
	require.Equal(t, "e", letters[0])
}

func TestLettersEmptyPrefixRanksFirstLetters(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	letters, err := f.Letters(context.Background(), "", 5)
	require.NoError(t, err)
	require.Len(t, letters, 5)
	require.Equal(t, "t", letters[0]) // "the" and "to" lead the list
}

func TestLettersNoCompletions(t *testing.T) {
	f, err := NewFrequency()
	require.NoError(t, err)

	letters, err := f.Letters(context.Background(), "zzz", 3)
	require.NoError(t, err)
	require.Empty(t, letters)
}
