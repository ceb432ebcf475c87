package tokenizer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteLevelRoundTrip(t *testing.T) {
	tok := NewByteLevel()
	assert.Equal(t, 256, tok.VocabSize())

	text := "Once upon a time, 42 dragons!"
	ids, err := tok.Encode(text)
	require.NoError(t, err)
	require.Len(t, ids, len(text))
	for i, id := range ids {
		assert.Equal(t, int(text[i]), id)
	}

	back, err := tok.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, text, back)
}

func TestEncodePrefersLongestMatch(t *testing.T) {
	tok, err := New([]string{"a", "b", "ab", "abc"}, 0)
	require.NoError(t, err)

	ids, err := tok.Encode("abcab")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, ids)
}

func TestEncodeEmitsUnkForUnknownBytes(t *testing.T) {
	tok, err := New([]string{"a", "<unk>"}, 1)
	require.NoError(t, err)

	ids, err := tok.Encode("axa")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0}, ids)
}

func TestEncodeSplitsContractions(t *testing.T) {
	tok := NewByteLevel()
	ids, err := tok.Encode("it's")
	require.NoError(t, err)
	back, err := tok.Decode(ids)
	require.NoError(t, err)
	assert.Equal(t, "it's", back)
}

func TestNewRejectsBadVocabularies(t *testing.T) {
	_, err := New(nil, 0)
	assert.Error(t, err)
	_, err = New([]string{"a"}, 5)
	assert.Error(t, err)
	_, err = New([]string{"a", ""}, 0)
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfRangeIDs(t *testing.T) {
	tok := NewByteLevel()
	_, err := tok.Decode([]int{0, 256})
	assert.Error(t, err)
	_, err = tok.Decode([]int{-1})
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.bin")
	entries := []string{"a", "b", "ab", "<unk>"}
	writeVocabFile(t, path, vocabMagic, vocabVersion, entries)

	tok, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(entries), tok.VocabSize())

	ids, err := tok.Encode("ab")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)
}

func TestNewFromFileRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.bin")
	writeVocabFile(t, path, 12345, vocabVersion, []string{"a"})
	_, err := NewFromFile(path)
	assert.Error(t, err)
}

func writeVocabFile(t *testing.T, path string, magic, version uint32, entries []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	header := make([]uint32, 256)
	header[0] = magic
	header[1] = version
	header[2] = uint32(len(entries))
	require.NoError(t, binary.Write(f, binary.LittleEndian, header))
	for _, entry := range entries {
		require.NoError(t, binary.Write(f, binary.LittleEndian, byte(len(entry))))
		_, err := f.WriteString(entry)
		require.NoError(t, err)
	}
}
