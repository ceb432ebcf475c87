// Package tokenizer converts between text and token ids using a fixed,
// externally trained vocabulary. Vocabulary construction itself happens
// elsewhere; this package only loads and applies one.
package tokenizer

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dlclark/regexp2"
)

const (
	vocabMagic   = 20240328
	vocabVersion = 1
)

// splitPattern is the GPT-2 pre-tokenization split. It needs the negative
// lookahead in `\s+(?!\S)`, which is why regexp2 is used instead of the
// standard library's regexp.
const splitPattern = `'(?:[sdmt]|ll|ve|re)| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
	VocabSize() int
}

// Vocab is a table-backed tokenizer: decode by table lookup, encode by
// longest-match over a byte trie after a GPT-2 style pre-split.
type Vocab struct {
	table   []string
	matcher *trie
	split   *regexp2.Regexp
	unk     int
}

// New builds a tokenizer from an in-memory vocabulary. Entry i decodes to
// table[i]; unk is the id emitted for unencodable bytes.
func New(table []string, unk int) (*Vocab, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	if unk < 0 || unk >= len(table) {
		return nil, fmt.Errorf("unknown-token id %d outside vocabulary of size %d", unk, len(table))
	}
	v := &Vocab{
		table:   table,
		matcher: newTrie(),
		split:   regexp2.MustCompile(splitPattern, regexp2.None),
		unk:     unk,
	}
	for i, entry := range table {
		if err := v.matcher.insert([]byte(entry), i); err != nil {
			return nil, fmt.Errorf("vocabulary entry %d: %w", i, err)
		}
	}
	return v, nil
}

// NewFromFile loads the binary vocabulary format: a 256-word uint32 header
// (magic, version, vocab size) followed by length-prefixed entries.
func NewFromFile(filename string) (*Vocab, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary file: %w", err)
	}
	defer f.Close()

	header := make([]uint32, 256)
	if err := binary.Read(f, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("reading vocabulary header: %w", err)
	}
	if header[0] != vocabMagic || header[1] != vocabVersion {
		return nil, fmt.Errorf("file %s is not a vocabulary file", filename)
	}
	table := make([]string, header[2])
	var length byte
	for i := range table {
		if err := binary.Read(f, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		if length == 0 {
			return nil, fmt.Errorf("entry %d has zero length", i)
		}
		entry := make([]byte, length)
		if err := binary.Read(f, binary.LittleEndian, entry); err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		table[i] = string(entry)
	}
	return New(table, len(table)-1)
}

// NewByteLevel builds a self-contained 256-entry vocabulary where token id
// equals byte value. Useful for toy corpora and tests.
func NewByteLevel() *Vocab {
	table := make([]string, 256)
	for i := range table {
		table[i] = string([]byte{byte(i)})
	}
	v, err := New(table, 0)
	if err != nil {
		panic(err)
	}
	return v
}

// Encode splits text into word-level chunks and trie-matches each chunk
// into token ids.
func (v *Vocab) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text)/3)
	m, err := v.split.FindStringMatch(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	for m != nil {
		ids = append(ids, v.matcher.tokenize([]byte(m.String()), v.unk)...)
		if m, err = v.split.FindNextMatch(m); err != nil {
			return nil, fmt.Errorf("splitting text: %w", err)
		}
	}
	return ids, nil
}

// Decode concatenates the table entries for ids.
func (v *Vocab) Decode(ids []int) (string, error) {
	var out []byte
	for _, id := range ids {
		if id < 0 || id >= len(v.table) {
			return "", fmt.Errorf("token id %d outside vocabulary of size %d", id, len(v.table))
		}
		out = append(out, v.table[id]...)
	}
	return string(out), nil
}

// VocabSize returns the number of entries.
func (v *Vocab) VocabSize() int {
	return len(v.table)
}
