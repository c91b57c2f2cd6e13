package derive

// Status is the badge shown for a board, derived from its monetary fields.
type Status string

const (
	StatusNone           Status = ""
	StatusPendingRenewal Status = "pending_renewal"
	StatusInProgress     Status = "in_progress"
	StatusRecurring      Status = "recurring"
	StatusComplete       Status = "complete"
)

// Values carries the four monetary fields the classifier reads.
type Values struct {
	Upcoming float64
	Received float64
	Total    float64
	Annual   float64
}

// Classify maps monetary fields to a status through an ordered rule set.
// Rule order matters: an in-progress board with a recurring product must
// still read as in progress, so the two in-progress rules sit ahead of the
// recurring one.
func Classify(v Values) Status {
	if v.Upcoming > 0 {
		return StatusPendingRenewal
	}
	if v.Received == 0 && v.Total > 0 {
		return StatusInProgress
	}
	if v.Annual == 0 && v.Received != v.Total {
		return StatusInProgress
	}
	if v.Annual > 0 {
		return StatusRecurring
	}
	if v.Received == v.Total && v.Total > 0 {
		return StatusComplete
	}
	return StatusNone
}
