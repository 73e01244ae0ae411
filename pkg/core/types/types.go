// Package types holds the small value types shared between the graph core
// and its callers.
package types

// Candidate pairs an internal node id with its distance to the current
// query. It is the element type of the traversal heaps.
type Candidate struct {
	ID       uint32
	Distance float32
}

// SearchResult is a single query answer: the external label stored with the
// node and its distance to the query, in the index's metric.
type SearchResult struct {
	Label    uint64
	Distance float32
}
