package graph

import "fmt"

// Graph reordering rewrites internal node ids so that nodes visited
// together during beam search sit close together in the packed buffer. The
// logical graph is unchanged: only ids and physical row positions move.

// ReorderGorder relabels the index with the Gorder greedy window ordering.
// windowSize is the trailing window the greedy step scores overlap against.
func (idx *Index) ReorderGorder(windowSize int) error {
	if windowSize < 1 {
		return fmt.Errorf("graph: gorder window must be positive, got %d", windowSize)
	}
	if idx.curNodes < 2 {
		return nil
	}
	perm := gorderPermutation(idx.outDegreeTable(), windowSize)
	idx.applyPermutation(perm)
	return nil
}

// ReorderRCM relabels the index with the Reverse Cuthill-McKee ordering.
func (idx *Index) ReorderRCM() error {
	if idx.curNodes < 2 {
		return nil
	}
	perm := rcmPermutation(idx.outDegreeTable())
	idx.applyPermutation(perm)
	return nil
}

// outDegreeTable collects each live node's outgoing links with self-loop
// sentinels filtered out.
func (idx *Index) outDegreeTable() [][]uint32 {
	table := make([][]uint32, idx.curNodes)
	for n := uint32(0); int(n) < idx.curNodes; n++ {
		for _, v := range idx.nodeLinks(n) {
			if v != n {
				table[n] = append(table[n], v)
			}
		}
	}
	return table
}

// applyPermutation relabels the graph in place under perm, where
// perm[old] = new. Two phases: rewrite every link value, then relocate the
// physical rows by following permutation cycles. Self-loop sentinels need
// no special case in phase one: the owner's row moves to perm[owner] in
// phase two, so rewriting them to perm[owner] keeps them self-loops.
func (idx *Index) applyPermutation(perm []uint32) {
	for n := uint32(0); int(n) < idx.curNodes; n++ {
		links := idx.nodeLinks(n)
		for i := range links {
			links[i] = perm[links[i]]
		}
	}

	// The visited set doubles as the relocation marker here.
	idx.visited.Clear()
	temp := make([]byte, idx.nodeSize)

	for n := uint32(0); int(n) < idx.curNodes; n++ {
		if idx.visited.Contains(n) {
			continue
		}
		src := n
		dest := perm[src]
		idx.swapRows(src, dest, temp)
		idx.visited.Insert(src)

		// Each swap parks the displaced row at src; keep pushing it to
		// its own destination until the cycle closes.
		for !idx.visited.Contains(dest) {
			idx.visited.Insert(dest)
			dest = perm[dest]
			idx.swapRows(src, dest, temp)
		}
	}
}

func (idx *Index) swapRows(a, b uint32, temp []byte) {
	if a == b {
		return
	}
	rowA := idx.memory[int(a)*idx.nodeSize : int(a+1)*idx.nodeSize]
	rowB := idx.memory[int(b)*idx.nodeSize : int(b+1)*idx.nodeSize]
	copy(temp, rowB)
	copy(rowB, rowA)
	copy(rowA, temp)
}
