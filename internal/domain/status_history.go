package domain

import "time"

// StatusHistoryEntry is an immutable audit record of one status write.
// OldStatus is nil only for the entry synthesized when the deal is created.
type StatusHistoryEntry struct {
	ID        string
	DealID    string
	OldStatus *DealStatus
	NewStatus DealStatus
	ChangedBy *string
	Notes     *string
	CreatedAt time.Time
}

// HistoryOrder selects the direction history is read in.
type HistoryOrder string

const (
	HistoryOldestFirst HistoryOrder = "oldest_first"
	HistoryNewestFirst HistoryOrder = "newest_first"
)

// ParseHistoryOrder accepts "asc"/"desc" aliases and defaults to newest first.
func ParseHistoryOrder(raw string) HistoryOrder {
	switch raw {
	case "asc", string(HistoryOldestFirst):
		return HistoryOldestFirst
	default:
		return HistoryNewestFirst
	}
}
