package home

// ActivityLogCapacity is the maximum number of entries kept in the log.
const ActivityLogCapacity = 10

// ActivityLog is a bounded, newest-first record of activity entries.
// Inserting into a full log evicts the oldest entry.
type ActivityLog struct {
	entries []ActivityEntry
}

// Add inserts an entry at the head of the log.
func (l *ActivityLog) Add(entry ActivityEntry) {
	if len(l.entries) < ActivityLogCapacity {
		l.entries = append(l.entries, ActivityEntry{})
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry
}

// Entries returns a copy of the log, newest first.
func (l *ActivityLog) Entries() []ActivityEntry {
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries in the log.
func (l *ActivityLog) Len() int {
	return len(l.entries)
}
