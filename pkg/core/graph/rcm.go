package graph

import "sort"

// rcmPermutation computes the Reverse Cuthill-McKee layout: a BFS ordering
// from a pseudo-peripheral seed with neighbors expanded in ascending degree
// order, reversed at the end. Links are treated as undirected edges.
func rcmPermutation(outdeg [][]uint32) []uint32 {
	n := len(outdeg)
	adj := undirectedAdjacency(outdeg)

	visited := make([]bool, n)
	order := make([]uint32, 0, n)
	queue := make([]uint32, 0, n)

	// The graph may have multiple components (early inserts can end up
	// unreachable); sweep each one from its own seed.
	for {
		seed, ok := minDegreeUnvisited(adj, visited)
		if !ok {
			break
		}
		seed = pseudoPeripheral(adj, seed, visited)

		visited[seed] = true
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			order = append(order, u)

			next := make([]uint32, 0, len(adj[u]))
			for _, v := range adj[u] {
				if !visited[v] {
					visited[v] = true
					next = append(next, v)
				}
			}
			sort.Slice(next, func(i, j int) bool {
				if len(adj[next[i]]) != len(adj[next[j]]) {
					return len(adj[next[i]]) < len(adj[next[j]])
				}
				return next[i] < next[j]
			})
			queue = append(queue, next...)
		}
	}

	perm := make([]uint32, n)
	for pos, old := range order {
		perm[old] = uint32(n - 1 - pos) // reversal
	}
	return perm
}

// undirectedAdjacency symmetrizes the out-link table and removes duplicate
// edges.
func undirectedAdjacency(outdeg [][]uint32) [][]uint32 {
	n := len(outdeg)
	adj := make([][]uint32, n)
	for u, links := range outdeg {
		for _, v := range links {
			adj[u] = append(adj[u], v)
			adj[v] = append(adj[v], uint32(u))
		}
	}
	for u := range adj {
		sort.Slice(adj[u], func(i, j int) bool { return adj[u][i] < adj[u][j] })
		dedup := adj[u][:0]
		var last uint32
		for i, v := range adj[u] {
			if i == 0 || v != last {
				dedup = append(dedup, v)
			}
			last = v
		}
		adj[u] = dedup
	}
	return adj
}

func minDegreeUnvisited(adj [][]uint32, visited []bool) (uint32, bool) {
	best := -1
	var seed uint32
	for i := range adj {
		if visited[i] {
			continue
		}
		if best == -1 || len(adj[i]) < best {
			best = len(adj[i])
			seed = uint32(i)
		}
	}
	return seed, best != -1
}

// pseudoPeripheral runs the George-Liu double sweep: BFS to the farthest
// level from the seed, restart from that level's min-degree node, and keep
// the second endpoint. Long, thin BFS level structures are what make RCM
// bandwidths small.
func pseudoPeripheral(adj [][]uint32, seed uint32, visited []bool) uint32 {
	for sweep := 0; sweep < 2; sweep++ {
		far := bfsFarthest(adj, seed, visited)
		if far == seed {
			break
		}
		seed = far
	}
	return seed
}

// bfsFarthest returns the min-degree node in the last BFS level reachable
// from start, considering only unvisited nodes.
func bfsFarthest(adj [][]uint32, start uint32, visited []bool) uint32 {
	seen := map[uint32]bool{start: true}
	level := []uint32{start}
	last := level

	for len(level) > 0 {
		last = level
		var next []uint32
		for _, u := range level {
			for _, v := range adj[u] {
				if !visited[v] && !seen[v] {
					seen[v] = true
					next = append(next, v)
				}
			}
		}
		level = next
	}

	far := last[0]
	for _, u := range last[1:] {
		if len(adj[u]) < len(adj[far]) {
			far = u
		}
	}
	return far
}
