package tokenizer

import "fmt"

// trie maps byte sequences to token ids for longest-match encoding.
type trie struct {
	children map[byte]*trie
	id       int
	end      bool
}

func newTrie() *trie {
	return &trie{children: map[byte]*trie{}}
}

// insert registers a vocabulary entry.
func (t *trie) insert(word []byte, id int) error {
	if len(word) == 0 {
		return fmt.Errorf("zero length vocabulary entry not supported")
	}
	cur := t
	for _, b := range word {
		if cur.children[b] == nil {
			cur.children[b] = &trie{children: map[byte]*trie{}}
		}
		cur = cur.children[b]
	}
	cur.end = true
	cur.id = id
	return nil
}

// tokenize greedily matches the longest known vocabulary entry at each
// position. Bytes with no match at all emit unk and advance by one.
func (t *trie) tokenize(input []byte, unk int) []int {
	var ids []int
	for len(input) != 0 {
		cur := t
		id, width := unk, 1
		for next := 0; next < len(input); next++ {
			cur = cur.children[input[next]]
			if cur == nil {
				break
			}
			if cur.end {
				id, width = cur.id, next+1
			}
		}
		ids = append(ids, id)
		input = input[width:]
	}
	return ids
}
