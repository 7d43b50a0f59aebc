package signals

// Batch groups multiple signal updates into a single notification phase.
// Updates inside fn queue their notifications; when the outermost batch
// completes, queued listeners are deduplicated and notified once each.
//
// Batches nest: notifications fire only when the outermost batch ends.
//
// Listeners notified at batch completion observe every write made inside
// the batch, so a batch is also a consistency boundary: no listener sees
// a partial set of the batch's updates.
func Batch(fn func()) {
	st := currentState()
	st.batchDepth++

	defer func() {
		st.batchDepth--
		if st.batchDepth == 0 {
			flushPending(st)
		}
	}()

	fn()
}

// flushPending deduplicates the queued listeners by ID and notifies each
// one once.
func flushPending(st *trackState) {
	pending := st.pending
	st.pending = nil
	if len(pending) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(pending))
	for _, l := range pending {
		id := l.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		l.MarkDirty()
	}
}
