package walk

import (
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cpmech/gosl/io"

	"github.com/cpmech/sphcore/internal/sphchk"
	"github.com/cpmech/sphcore/particle"
	"github.com/cpmech/sphcore/particlekind"
)

// ExportDirective tells the driver that the local tree walk for a target
// hit an off-processor node and a query must be exported to DestRank.
// Part of the Tree contract spec §6 consumes: the tree, not the driver,
// knows which of its internal nodes are "pseudo-particles" owned by a
// peer.
type ExportDirective struct {
	DestRank int
}

// treeWithExports is the full shape spec §4.B needs from the external
// tree: local candidates plus, when the walk crosses a domain boundary,
// the set of peers that must be queried. Kept as a separate interface
// from Tree (types.go) so a tree implementation that never runs
// distributed can implement the narrower Tree alone; run_walk requires
// the superset, falling back to localOnlyAdapter when a Tree doesn't
// implement it.
type treeWithExports interface {
	Tree
	FindNeighborsEx(center particle.Vec3, radius float64, mask func(particlekind.Kind) bool, cursor NodeCursor) (neighbors []NeighborRef, exports []ExportDirective, next NodeCursor)
}

// Run is the public tree-walk driver of spec §4.B. It partitions active
// particles across a worker pool (spec §5: shared atomic cursor, private
// per-worker export staging), walks each one's local tree, exports queries
// that cross a domain boundary, and — once every active particle's cursor
// is exhausted — invokes ReduceResult exactly once per particle with the
// fully merged local+remote result.
func Run(spec WalkSpec) error {
	if spec.MaxRounds <= 0 {
		return sphchk.ConfigError("MaxRounds must be positive, got %d", spec.MaxRounds)
	}

	var active []int
	for i := 0; i < spec.Store.Len(); i++ {
		if spec.IsActive(i) {
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		return nil
	}

	tree, ok := spec.Tree.(treeWithExports)
	if !ok {
		// A tree that only implements the narrower local-only contract is
		// treated as single-process: every candidate is local, no exports
		// ever happen.
		tree = localOnlyAdapter{spec.Tree}
	}

	col := newCollective()
	accs := make([]ResultRecord, len(active))
	cursors := make([]NodeCursor, len(active))

	pending := make([]int, len(active))
	for i := range pending {
		pending[i] = i
	}

	nWorkers := spec.Workers
	if nWorkers <= 0 {
		nWorkers = 4
	}

	box := spec.Store.Box()

	for round := 0; round < spec.MaxRounds && len(pending) > 0; round++ {
		workerBufs := make([]*exportBuffer, nWorkers)
		for w := range workerBufs {
			buf, err := newExportBuffer(spec.BufferSizeMiB)
			if err != nil {
				return err
			}
			workerBufs[w] = buf
		}

		var cursorPos int64 = -1
		g := new(errgroup.Group)
		for w := 0; w < nWorkers; w++ {
			buf := workerBufs[w]
			g.Go(func() error {
				for {
					idx := atomic.AddInt64(&cursorPos, 1)
					if int(idx) >= len(pending) {
						return nil
					}
					slot := pending[idx]
					i := active[slot]

					q := spec.FillQuery(i)
					scratch := spec.NewScratch(q)
					nbrs, exports, next := tree.FindNeighborsEx(q.Pos, scratch.SearchRadius, scratch.Mask, cursors[slot])

					if len(exports) > 0 {
						fits := true
						for _, ex := range exports {
							if !buf.tryAdd(exportEntry{DestRank: ex.DestRank, OriginIndex: slot, Query: q}) {
								fits = false
								break
							}
						}
						if !fits {
							// spec §4.B: buffer full mid-pass => record
							// partial progress (cursor unchanged) and
							// resume on the next round, after a flush.
							continue
						}
					}

					for _, nb := range nbrs {
						d := box.NearestImage(nb.Pos.Sub(q.Pos))
						r2 := d.Norm2()
						cut := math.Max(scratch.SearchRadius, nb.Hsml)
						if r2 < cut*cut {
							spec.NeighborIter(q, &accs[slot], scratch, nb, math.Sqrt(r2))
						}
					}
					cursors[slot] = next
				}
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		merged := mergeBuffers(workerBufs)
		incoming := col.exchangeQueries(merged)

		outgoing := make(map[int][]resultEnvelope)
		for _, e := range incoming {
			acc := answerSecondary(tree, spec, box, e.Query)
			outgoing[e.DestRank] = append(outgoing[e.DestRank], resultEnvelope{OriginIndex: e.OriginIndex, Result: acc})
		}
		results := col.exchangeResults(outgoing)
		for _, re := range results {
			accs[re.OriginIndex].Add(re.Result)
		}

		var next []int
		for _, slot := range pending {
			if !cursors[slot].Exhausted {
				next = append(next, slot)
			}
		}
		pending = next
		col.barrier()
	}

	if len(pending) > 0 {
		io.Pforan("walk: %d particle(s) still pending after MaxRounds=%d\n", len(pending), spec.MaxRounds)
		return sphchk.ResourceError("tree walk did not exhaust %d particle(s)' node lists within MaxRounds=%d; raise BufferSizeMiB or MaxRounds", len(pending), spec.MaxRounds)
	}

	for idx, i := range active {
		spec.ReduceResult(i, accs[idx], Primary)
	}
	return nil
}

// answerSecondary runs neighbor_iter in SECONDARY mode (spec §4.B) over an
// imported query's local neighbors, draining the local tree fully: a
// peer's answer to one query is never itself re-exported, so there is no
// buffer budget to respect here — only the originating rank's export pass
// is resource-bounded. The result is written to the query's own result
// slot and shipped back, never into this rank's own particle state (spec
// §5: "a SECONDARY-mode visit writes to the query's result slot, not to
// the owning-process's particle state directly").
func answerSecondary(tree treeWithExports, spec WalkSpec, box particle.Box, q QueryRecord) ResultRecord {
	var acc ResultRecord
	scratch := spec.NewScratch(q)
	cursor := NodeCursor{}
	for {
		nbrs, _, next := tree.FindNeighborsEx(q.Pos, scratch.SearchRadius, scratch.Mask, cursor)
		for _, nb := range nbrs {
			d := box.NearestImage(nb.Pos.Sub(q.Pos))
			r2 := d.Norm2()
			cut := math.Max(scratch.SearchRadius, nb.Hsml)
			if r2 < cut*cut {
				spec.NeighborIter(q, &acc, scratch, nb, math.Sqrt(r2))
			}
		}
		cursor = next
		if cursor.Exhausted {
			break
		}
	}
	return acc
}

// localOnlyAdapter lifts a narrow Tree (no cross-process awareness) into
// treeWithExports by always reporting zero exports and Exhausted=true —
// the correct behaviour for a single-process run.
type localOnlyAdapter struct {
	Tree
}

func (a localOnlyAdapter) FindNeighborsEx(center particle.Vec3, radius float64, mask func(particlekind.Kind) bool, cursor NodeCursor) ([]NeighborRef, []ExportDirective, NodeCursor) {
	nbrs, next := a.Tree.FindNeighbors(center, radius, mask, cursor)
	next.Exhausted = true
	return nbrs, nil, next
}
