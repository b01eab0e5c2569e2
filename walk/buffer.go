package walk

import "github.com/cpmech/sphcore/internal/sphchk"

// exportEntrySize is the assumed on-wire size in bytes of one QueryRecord
// once it is staged for cross-process export: 3 floats position + 1 Hsml +
// 1 kind + 3 floats velocity + 1 int timebin + cursor, rounded up. A fixed
// estimate rather than runtime reflection/serialisation, matching spec
// §4.B's framing of the buffer as a byte budget, not an entry-count budget.
const exportEntrySize = 96

// exportEntry pairs a query with its destination rank and the origin-side
// index needed to route the eventual result back to ReduceResult.
type exportEntry struct {
	DestRank    int
	OriginIndex int
	Query       QueryRecord
}

// exportBuffer is the per-worker staging area of spec §4.B/§5: each worker
// gets its own, and a single serial phase merges them into the outgoing
// buffer between parallel phases.
type exportBuffer struct {
	budgetBytes int
	entries     []exportEntry
	usedBytes   int
}

// newExportBuffer builds a buffer sized to budgetMiB. A budget too small
// to admit even one entry is a ResourceError raised immediately (spec
// §4.B "Buffer too small to admit a single particle ⇒ fatal"), not
// deferred until the first TryAdd.
func newExportBuffer(budgetMiB int) (*exportBuffer, error) {
	budgetBytes := budgetMiB * 1024 * 1024
	if budgetBytes < exportEntrySize {
		return nil, sphchk.ResourceError("export buffer budget of %d MiB cannot hold a single particle's query (needs >= %d bytes)", budgetMiB, exportEntrySize)
	}
	return &exportBuffer{budgetBytes: budgetBytes}, nil
}

// tryAdd appends e if it fits within the remaining budget; returns false
// (buffer full, caller must flush and retry) otherwise.
func (b *exportBuffer) tryAdd(e exportEntry) bool {
	if b.usedBytes+exportEntrySize > b.budgetBytes {
		return false
	}
	b.entries = append(b.entries, e)
	b.usedBytes += exportEntrySize
	return true
}

func (b *exportBuffer) reset() {
	b.entries = b.entries[:0]
	b.usedBytes = 0
}

// mergeBuffers is the single-threaded merge phase of spec §4.B/§5: folds
// every worker's staging buffer into one outgoing list, grouped by
// destination rank in encounter order (within-process order is
// deterministic for a fixed domain decomposition, spec §5).
func mergeBuffers(workerBufs []*exportBuffer) map[int][]exportEntry {
	out := make(map[int][]exportEntry)
	for _, buf := range workerBufs {
		for _, e := range buf.entries {
			out[e.DestRank] = append(out[e.DestRank], e)
		}
	}
	return out
}
