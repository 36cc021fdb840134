package mibnames

import (
	"sync"

	"github.com/geekxflood/printkit/snmp"
)

// OIDTrie is a prefix tree keyed by OID arcs. Each node may carry a name;
// unnamed nodes are interior arcs between named ones.
//
//	1.3.6.1.2.1.43.11.1.1.9 -> prtMarkerSuppliesLevel
//	1.3.6.1.2.1.43.11.1.1.8 -> prtMarkerSuppliesMaxCapacity
//
// share every node down to 1.3.6.1.2.1.43.11.1.1 (prtMarkerSuppliesEntry).
type OIDTrie struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

type trieNode struct {
	children map[uint32]*trieNode
	name     string
}

// NewOIDTrie returns an empty trie.
func NewOIDTrie() *OIDTrie {
	return &OIDTrie{root: &trieNode{}}
}

// Insert names oid, replacing any previous name.
func (t *OIDTrie) Insert(oid snmp.OID, name string) {
	if len(oid) == 0 || name == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root
	for _, arc := range oid {
		child, ok := n.children[arc]
		if !ok {
			if n.children == nil {
				n.children = make(map[uint32]*trieNode)
			}
			child = &trieNode{}
			n.children[arc] = child
		}
		n = child
	}
	if n.name == "" {
		t.size++
	}
	n.name = name
}

// Lookup returns the name of exactly oid, or "".
func (t *OIDTrie) Lookup(oid snmp.OID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	for _, arc := range oid {
		n = n.children[arc]
		if n == nil {
			return ""
		}
	}
	return n.name
}

// LongestPrefix returns the name of the deepest named node on oid's path and
// the number of arcs it covers. It returns "", 0 when no prefix is named.
func (t *OIDTrie) LongestPrefix(oid snmp.OID) (string, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		name  string
		depth int
	)
	n := t.root
	for i, arc := range oid {
		n = n.children[arc]
		if n == nil {
			break
		}
		if n.name != "" {
			name, depth = n.name, i+1
		}
	}
	return name, depth
}

// Size is the number of named nodes.
func (t *OIDTrie) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}
