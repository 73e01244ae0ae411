package graph

import "github.com/tidwall/btree"

// gorderItem is one unplaced node in the greedy frontier, ordered by its
// current window-overlap priority.
type gorderItem struct {
	priority int
	id       uint32
}

func gorderLess(a, b gorderItem) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.id > b.id // ties break toward the smaller id at Max()
}

// gorderPermutation computes the Gorder layout: repeatedly emit the node
// whose neighborhood (in either edge direction) overlaps most with the
// trailing window of already-emitted nodes. Priorities change constantly,
// so the frontier lives in an ordered B-tree where a priority bump is a
// delete-and-reinsert.
func gorderPermutation(outdeg [][]uint32, windowSize int) []uint32 {
	n := len(outdeg)

	indeg := make([][]uint32, n)
	for u, links := range outdeg {
		for _, v := range links {
			indeg[v] = append(indeg[v], uint32(u))
		}
	}

	prio := make([]int, n)
	placed := make([]bool, n)

	tree := btree.NewBTreeG[gorderItem](gorderLess)
	for i := 0; i < n; i++ {
		tree.Set(gorderItem{priority: 0, id: uint32(i)})
	}

	bump := func(u uint32, delta int) {
		if placed[u] {
			return
		}
		tree.Delete(gorderItem{priority: prio[u], id: u})
		prio[u] += delta
		tree.Set(gorderItem{priority: prio[u], id: u})
	}

	// Seed with the highest-degree node so the window starts in a dense
	// region.
	seed := uint32(0)
	best := -1
	for i := 0; i < n; i++ {
		if d := len(outdeg[i]) + len(indeg[i]); d > best {
			best = d
			seed = uint32(i)
		}
	}
	bump(seed, n) // force the seed to the top of the frontier

	order := make([]uint32, 0, n)
	window := make([]uint32, 0, windowSize)

	for len(order) < n {
		item, _ := tree.Max()
		tree.Delete(item)
		v := item.id
		placed[v] = true
		order = append(order, v)

		for _, u := range outdeg[v] {
			bump(u, 1)
		}
		for _, u := range indeg[v] {
			bump(u, 1)
		}

		window = append(window, v)
		if len(window) > windowSize {
			old := window[0]
			window = window[1:]
			for _, u := range outdeg[old] {
				bump(u, -1)
			}
			for _, u := range indeg[old] {
				bump(u, -1)
			}
		}
	}

	perm := make([]uint32, n)
	for pos, old := range order {
		perm[old] = uint32(pos)
	}
	return perm
}
