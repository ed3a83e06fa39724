// Stream entries are kept in a bitwise trie with bitmap, or "Array Mapped
// Tree" (AMT), with single-child nodes compressed into a radix tree.
//
// Adapted from the teacher repo's streams/radix.go: each internal node has a
// 64-bit bitmap marking which of its 64 possible children exist. Keys are
// StreamIDs normalized into a fixed 22-byte internalKey (see stream_id.go),
// so every leaf sits at the same depth and a node's position in the tree
// already encodes its full key prefix. That fixed depth is what makes range
// queries (xrange, xread) a matter of walking digit-by-digit rather than
// comparing whole keys at every node.
//
// Once a node's bitmap establishes that a child for a given digit exists, a
// population count (bits.OnesCount64) over the bits below that digit gives
// the child's index into the node's children slice — the Go compiler emits
// a native popcount instruction for this on every supported architecture.
package store

import "math/bits"

// streamEntryNode is one node of the radix tree.
type streamEntryNode struct {
	leaf       *streamLeaf // non-nil only on leaves
	bitmap     uint64
	extraChars []uint8 // compressed single-child prefix, consumed before bitmap/children are consulted
	children   []streamEntryNode
}

type streamLeaf struct {
	id     StreamID
	fields []FieldPair
}

// FieldPair is one (name, value) pair of a stream entry, kept in insertion
// order since Go maps do not preserve it and the spec requires stable field
// ordering on XRANGE/XREAD output.
type FieldPair struct {
	Name  string
	Value string
}

// longestCommonPrefix walks down from n following key, stopping at the
// first digit it cannot match. failIdx == -1 means key was matched in full
// (bestMatch is then always a leaf). extraFailIdx, when != -1, says the
// mismatch happened inside a compressed node's extraChars at that offset.
func (n *streamEntryNode) longestCommonPrefix(key internalKey) (bestMatch *streamEntryNode, failIdx int, extraFailIdx int) {
	current := n
	for depth := 0; ; depth++ {
		for i, ch := range current.extraChars {
			if ch != key[depth+i] {
				return current, depth + i, i
			}
		}
		depth += len(current.extraChars)

		if depth == len(key) {
			return current, -1, -1
		}

		digit := key[depth]
		mask := uint64(1) << digit
		if current.bitmap&mask == 0 {
			return current, depth, -1
		}
		current = &current.children[childIndex(current.bitmap, digit)]
	}
}

// insert creates (or returns, if present) the leaf node for key.
func (n *streamEntryNode) insert(key internalKey) *streamEntryNode {
	node, failIdx, extraFailIdx := n.longestCommonPrefix(key)
	if failIdx == -1 {
		return node
	}

	var newNode *streamEntryNode
	if extraFailIdx == -1 {
		digit := key[failIdx]
		mask := uint64(1) << digit
		node.bitmap |= mask
		idx := childIndex(node.bitmap, digit)
		node.insertChildSlot(idx)
		newNode = &node.children[idx]
	} else {
		split := *node
		split.extraChars = node.extraChars[extraFailIdx+1:]

		splitDigit := node.extraChars[extraFailIdx]
		newDigit := key[failIdx]
		if newDigit > splitDigit {
			node.children = []streamEntryNode{split, {}}
			newNode = &node.children[1]
		} else {
			node.children = []streamEntryNode{{}, split}
			newNode = &node.children[0]
		}
		node.extraChars = node.extraChars[:extraFailIdx]
		node.bitmap = (uint64(1) << splitDigit) | (uint64(1) << newDigit)
		node.leaf = nil
	}

	rest := key[failIdx+1:]
	if len(rest) > 0 {
		newNode.extraChars = append([]uint8(nil), rest...)
	}
	return newNode
}

func (n *streamEntryNode) insertChildSlot(idx int) {
	if n.children == nil {
		n.children = []streamEntryNode{{}}
		return
	}
	if len(n.children)+1 > cap(n.children) {
		grown := make([]streamEntryNode, len(n.children)+1, cap(n.children)+2)
		copy(grown, n.children[:idx])
		copy(grown[idx+1:], n.children[idx:])
		n.children = grown
		return
	}
	n.children = n.children[:len(n.children)+1]
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = streamEntryNode{}
}

// allLeaves returns every leaf under n, ordered lowest to highest key.
func (n *streamEntryNode) allLeaves() []*streamLeaf {
	out := make([]*streamLeaf, 0, 1)
	stack := []*streamEntryNode{n}
	for len(stack) > 0 {
		var node *streamEntryNode
		stack, node = stack[:len(stack)-1], stack[len(stack)-1]
		if node.leaf != nil {
			out = append(out, node.leaf)
			continue
		}
		stack = pushChildrenReverse(stack, node.children)
	}
	return out
}

// rangeLeaves returns every leaf with key in [fromKey, toKey], inclusive,
// ordered lowest to highest.
func (n *streamEntryNode) rangeLeaves(fromKey, toKey internalKey) []*streamLeaf {
	current := n
	for depth := 0; ; depth++ {
		for i, ch := range current.extraChars {
			from, to := fromKey[depth+i], toKey[depth+i]

			switch {
			case from == to && to == ch:
				continue
			case from == to:
				return nil
			case from < ch && ch < to:
				return current.allLeaves()
			case ch < from || to < ch:
				return nil
			case ch == from:
				return current.higherOrEqual(fromKey[depth:])
			case ch == to:
				return current.lowerOrEqual(toKey[depth:])
			}
		}
		depth += len(current.extraChars)

		if depth == len(fromKey) {
			if current.leaf != nil {
				return []*streamLeaf{current.leaf}
			}
			return nil
		}

		if fromKey[depth] == toKey[depth] {
			digit := toKey[depth]
			mask := uint64(1) << digit
			if current.bitmap&mask == 0 {
				return nil
			}
			current = &current.children[childIndex(current.bitmap, digit)]
			continue
		}

		var out []*streamLeaf
		fromMask := uint64(1) << fromKey[depth]
		if current.bitmap&fromMask != 0 {
			child := &current.children[childIndex(current.bitmap, fromKey[depth])]
			out = append(out, child.higherOrEqual(fromKey[depth+1:])...)
		}
		for digit := fromKey[depth] + 1; digit < toKey[depth]; digit++ {
			mask := uint64(1) << digit
			if current.bitmap&mask != 0 {
				child := &current.children[childIndex(current.bitmap, digit)]
				out = append(out, child.allLeaves()...)
			}
		}
		toMask := uint64(1) << toKey[depth]
		if current.bitmap&toMask != 0 {
			child := &current.children[childIndex(current.bitmap, toKey[depth])]
			out = append(out, child.lowerOrEqual(toKey[depth+1:])...)
		}
		return out
	}
}

// higherOrEqual returns leaves under n with key >= key, lowest to highest.
func (n *streamEntryNode) higherOrEqual(key internalKey) []*streamLeaf {
	nodes := n.higherSiblingsDFS(key)
	out := make([]*streamLeaf, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		out = append(out, nodes[i].allLeaves()...)
	}
	return out
}

// lowerOrEqual returns leaves under n with key <= key, lowest to highest.
func (n *streamEntryNode) lowerOrEqual(key internalKey) []*streamLeaf {
	nodes := n.lowerSiblingsDFS(key)
	out := make([]*streamLeaf, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.allLeaves()...)
	}
	return out
}

func (n *streamEntryNode) higherSiblingsDFS(key internalKey) []*streamEntryNode {
	var out []*streamEntryNode
	current := n
	for depth := 0; ; depth++ {
		for i, ch := range current.extraChars {
			if ch < key[depth+i] {
				return out
			} else if ch > key[depth+i] {
				return append(out, current)
			}
		}
		depth += len(current.extraChars)

		if depth == len(key) {
			return append(out, current)
		}

		digit := key[depth]
		mask := uint64(1) << digit
		idx := childIndex(current.bitmap, digit)
		if current.bitmap&mask == 0 {
			return pushChildrenReverse(out, current.children[idx:])
		}
		out = pushChildren(out, current.children[idx+1:])
		current = &current.children[idx]
	}
}

func (n *streamEntryNode) lowerSiblingsDFS(key internalKey) []*streamEntryNode {
	var out []*streamEntryNode
	current := n
	for depth := 0; ; depth++ {
		for i, ch := range current.extraChars {
			if ch > key[depth+i] {
				return out
			} else if ch < key[depth+i] {
				return append(out, current)
			}
		}
		depth += len(current.extraChars)

		if depth == len(key) {
			return append(out, current)
		}

		digit := key[depth]
		mask := uint64(1) << digit
		idx := childIndex(current.bitmap, digit)
		if current.bitmap&mask == 0 {
			return pushChildren(out, current.children[:idx])
		}
		out = pushChildren(out, current.children[:idx])
		current = &current.children[idx]
	}
}

func pushChildren(ptrs []*streamEntryNode, nodes []streamEntryNode) []*streamEntryNode {
	for i := range nodes {
		ptrs = append(ptrs, &nodes[i])
	}
	return ptrs
}

func pushChildrenReverse(ptrs []*streamEntryNode, nodes []streamEntryNode) []*streamEntryNode {
	for i := len(nodes) - 1; i >= 0; i-- {
		ptrs = append(ptrs, &nodes[i])
	}
	return ptrs
}

// childIndex returns the index into children that corresponds to digit,
// assuming (per bitmap) a child for it exists: the number of set bits in
// bitmap below digit.
func childIndex(bitmap uint64, digit uint8) int {
	if digit == 0 {
		return 0
	}
	below := maxUint64 >> (64 - digit)
	return bits.OnesCount64(bitmap & below)
}
