// Package driver implements the Inference3D driver (spec.md §4.I): the
// collection of datapoints, the serial/MPI dispatch strategies, and the
// cancellation and run-manifest bookkeeping around a per-datapoint
// Inference1D run.
package driver

import (
	"sort"

	"github.com/geoinv/aem-rjmcmc/pkg/datapoint"
)

// WorkQueue holds the datapoints dispatched is a single Inference3D run,
// narrowed by an optional datapoint.Filter (spec.md §6's
// --index/--fiducial/--line CLI flags). Adapted from the teacher's
// pkg/discovery.ServiceFilter-narrowed listing: a flat slice plus a Match
// predicate, not a database query.
type WorkQueue struct {
	items []*datapoint.Datapoint
}

// NewWorkQueue builds a WorkQueue from all, keeping only the datapoints
// filter.Match selects. A zero-value Filter selects everything.
func NewWorkQueue(all []*datapoint.Datapoint, filter datapoint.Filter) *WorkQueue {
	items := make([]*datapoint.Datapoint, 0, len(all))
	for i, dp := range all {
		if filter.Match(i, dp.Fiducial, dp.LineNumber) {
			items = append(items, dp)
		}
	}
	return &WorkQueue{items: items}
}

// Len returns the number of queued datapoints.
func (q *WorkQueue) Len() int { return len(q.items) }

// All returns every queued datapoint, in fiducial order.
func (q *WorkQueue) All() []*datapoint.Datapoint {
	out := append([]*datapoint.Datapoint(nil), q.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Fiducial < out[j].Fiducial })
	return out
}

// Slice returns the datapoints in [start, end), clamped to the queue's
// bounds — the unit MPIDispatcher hands each rank via empi.AllocN.
func (q *WorkQueue) Slice(start, end int) []*datapoint.Datapoint {
	all := q.All()
	if start < 0 {
		start = 0
	}
	if end > len(all) {
		end = len(all)
	}
	if start >= end {
		return nil
	}
	return all[start:end]
}
