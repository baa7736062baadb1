// Package trie implements a reference-counted prefix trie over the indexed
// vocabulary. Each terminal node counts how many live documents contain the
// word ending there, so removing one document's word never erases a prefix
// path still used by another document's word.
package trie

import "sort"

type node struct {
	children map[rune]*node
	terminal bool
	// refs is the number of indexed documents containing the word that
	// ends at this node. Only meaningful when terminal is true.
	refs int
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Trie is a prefix index storing lowercase tokens. Case normalisation is the
// tokenizer's job; the trie stores and returns words as given.
type Trie struct {
	root  *node
	words int
}

// New creates an empty Trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

// Len returns the number of distinct live words.
func (t *Trie) Len() int {
	return t.words
}

// Insert adds one document reference for word, creating nodes as needed.
// O(len(word)).
func (t *Trie) Insert(word string) {
	if word == "" {
		return
	}
	n := t.root
	for _, r := range word {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.words++
	}
	n.refs++
}

// Remove drops one document reference for word. When the last reference is
// gone the terminal flag is cleared and every node on the path that is
// neither terminal for another word nor has remaining children is pruned
// bottom-up. Removing an unknown word is a no-op. O(len(word)).
func (t *Trie) Remove(word string) {
	if word == "" {
		return
	}
	runes := []rune(word)
	// path[i] is the node reached after consuming runes[:i].
	path := make([]*node, 0, len(runes)+1)
	n := t.root
	path = append(path, n)
	for _, r := range runes {
		child, ok := n.children[r]
		if !ok {
			return
		}
		n = child
		path = append(path, n)
	}
	if !n.terminal {
		return
	}
	n.refs--
	if n.refs > 0 {
		return
	}
	n.terminal = false
	t.words--
	for i := len(runes); i > 0; i-- {
		current := path[i]
		if current.terminal || len(current.children) > 0 {
			break
		}
		delete(path[i-1].children, runes[i-1])
	}
}

// Contains reports whether word is a live word in the trie.
func (t *Trie) Contains(word string) bool {
	n := t.walk(word)
	return n != nil && n.terminal
}

// ContainsPrefix reports whether any live word starts with prefix. Every
// word starts with the empty prefix, so "" matches whenever the trie is
// non-empty.
func (t *Trie) ContainsPrefix(prefix string) bool {
	if prefix == "" {
		return t.words > 0
	}
	return t.walk(prefix) != nil
}

// Autocomplete returns up to limit live words starting with prefix, in
// lexicographic order. An absent prefix or non-positive limit yields nil.
// O(len(prefix) + nodes visited).
func (t *Trie) Autocomplete(prefix string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	n := t.walk(prefix)
	if n == nil {
		return nil
	}
	results := make([]string, 0, limit)
	collect(n, prefix, limit, &results)
	return results
}

// Words returns every live word in lexicographic order.
func (t *Trie) Words() []string {
	var results []string
	collect(t.root, "", -1, &results)
	return results
}

func (t *Trie) walk(s string) *node {
	if s == "" {
		return nil
	}
	n := t.root
	for _, r := range s {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// collect appends terminal words beneath n in lexicographic order until
// limit is reached (limit < 0 means unbounded).
func collect(n *node, prefix string, limit int, results *[]string) {
	if limit >= 0 && len(*results) >= limit {
		return
	}
	if n.terminal {
		*results = append(*results, prefix)
	}
	if len(n.children) == 0 {
		return
	}
	runes := make([]rune, 0, len(n.children))
	for r := range n.children {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	for _, r := range runes {
		if limit >= 0 && len(*results) >= limit {
			return
		}
		collect(n.children[r], prefix+string(r), limit, results)
	}
}
