package domain

// Status is the lifecycle label of a project. Any valid value may replace any
// other; there is no transition graph.
type Status string

const (
	StatusNone      Status = ""
	StatusActive    Status = "active"
	StatusOnHold    Status = "on-hold"
	StatusCompleted Status = "completed"
)

var validStatuses = []Status{StatusActive, StatusOnHold, StatusCompleted}

// ParseStatus reports whether s is exactly one of the valid status values.
// Matching is case-sensitive.
func ParseStatus(s string) (Status, bool) {
	for _, v := range validStatuses {
		if string(v) == s {
			return v, true
		}
	}
	return StatusNone, false
}

func ValidStatuses() []Status {
	out := make([]Status, len(validStatuses))
	copy(out, validStatuses)
	return out
}
