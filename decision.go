package quota

import "time"

// Outcome is the verdict of a successful spend call.
type Outcome int

const (
	Denied Outcome = iota
	Allowed
)

func (o Outcome) String() string {
	if o == Allowed {
		return "allowed"
	}
	return "denied"
}

type Decision struct {
	Outcome Outcome
	// Used is the counter value after an allowed spend, or the value that
	// caused a denial.
	Used       int64
	Remaining  int64
	ResetAfter time.Duration // 0 if unknown
	Attempts   int
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}
