package entities

// LedgerSnapshot holds the day's free-usage count and the paid balance,
// read at a single point.
type LedgerSnapshot struct {
	UsedToday   int
	PaidBalance int64
}
