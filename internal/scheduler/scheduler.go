// Package scheduler computes a deterministic execution order for a machine
// model's component graph via Kahn's algorithm, falling back to snapshot
// order when the graph has a cycle.
package scheduler

import (
	"log"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// CycleInfo is the diagnostic recorded when the graph could not be fully
// ordered: the ids still carrying a non-zero in-degree when Kahn's queue ran
// dry.
type CycleInfo struct {
	Remaining []uint64
}

// Order derives the execution order for a snapshot's components. When the
// graph is acyclic it returns the topological order and a nil CycleInfo.
// When a cycle exists it returns the components in their original snapshot
// order and a non-nil CycleInfo describing the vertices the sort could not
// place.
func Order(components []model.Component, connections []model.Connection) ([]uint64, *CycleInfo) {
	ids := make([]uint64, len(components))
	index := make(map[uint64]int, len(components))
	for i, c := range components {
		ids[i] = c.ID
		index[c.ID] = i
	}

	// Collapse (source, target) to a set so duplicate connections
	// contribute to in-degree at most once.
	seen := make(map[[2]uint64]bool)
	adjacency := make(map[uint64][]uint64, len(components))
	inDegree := make(map[uint64]int, len(components))
	for _, id := range ids {
		inDegree[id] = 0
	}

	for _, conn := range connections {
		if !conn.HasPorts() {
			continue
		}
		if _, ok := index[conn.SourceComponentID]; !ok {
			continue
		}
		if _, ok := index[conn.TargetComponentID]; !ok {
			continue
		}
		key := [2]uint64{conn.SourceComponentID, conn.TargetComponentID}
		if seen[key] {
			continue
		}
		seen[key] = true
		adjacency[conn.SourceComponentID] = append(adjacency[conn.SourceComponentID], conn.TargetComponentID)
		inDegree[conn.TargetComponentID]++
	}

	// Initial queue: components in snapshot order with in-degree 0.
	queue := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]uint64, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) == len(ids) {
		return order, nil
	}

	placed := make(map[uint64]bool, len(order))
	for _, id := range order {
		placed[id] = true
	}
	remaining := make([]uint64, 0, len(ids)-len(order))
	for _, id := range ids {
		if !placed[id] {
			remaining = append(remaining, id)
		}
	}

	info := &CycleInfo{Remaining: remaining}
	log.Printf("[scheduler] cycle detected among components %v, falling back to snapshot order", remaining)
	return append([]uint64(nil), ids...), info
}
