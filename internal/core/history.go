package core

import "time"

// History is the session ledger, newest entry first.
type History []HistoryEntry

// Prepend returns a new History with e in front. The receiver is left as is,
// so earlier snapshots of the ledger stay valid.
func (h History) Prepend(e HistoryEntry) History {
	out := make(History, 0, len(h)+1)
	out = append(out, e)
	return append(out, h...)
}

// NextID returns a millisecond timestamp id for an entry created at now,
// bumped past the newest id when the clock has not moved forward.
func (h History) NextID(now time.Time) int64 {
	id := now.UnixMilli()
	if len(h) > 0 && h[0].ID >= id {
		id = h[0].ID + 1
	}
	return id
}

// Latest returns the newest entry, if any.
func (h History) Latest() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[0], true
}
