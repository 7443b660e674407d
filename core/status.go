package core

import "fmt"

// Status is the moderation status of an entity. It is stored as an integer.
type Status int

const (
	NotRegistered Status = -1 // only used for messages, never stored
	Pending       Status = 0
	Approved      Status = 1
	Rejected      Status = 2
)

func (s Status) String() string {
	switch s {
	case NotRegistered:
		return "not registered"
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

func (s Status) Valid() bool {
	switch s {
	case Pending:
		return true
	case Approved:
		return true
	case Rejected:
		return true
	default:
		return false
	}
}

// ParseStatus is the inverse of Status.String for stored statuses.
func ParseStatus(str string) (Status, error) {
	for _, s := range []Status{Pending, Approved, Rejected} {
		if s.String() == str {
			return s, nil
		}
	}
	return Pending, fmt.Errorf("unknown status %q", str)
}

// State is independent of Status. Draft entities are hidden from every default listing.
type State int

const (
	Normal State = 0
	Draft  State = 1
)

func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Draft:
		return "draft"
	}
	return "unknown"
}
