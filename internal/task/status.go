package task

import (
	"fmt"
	"time"
)

type Status int

const (
	Ongoing Status = iota
	Success
	Failure
)

var Statuses = []Status{Ongoing, Success, Failure}

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Label is the bucket heading shown to users.
func (s Status) Label() string {
	switch s {
	case Success:
		return "Completed Tasks"
	case Failure:
		return "Overdue Tasks"
	default:
		return "Active Tasks"
	}
}

func ParseStatus(v string) (Status, error) {
	switch v {
	case "ongoing", "active":
		return Ongoing, nil
	case "success", "completed", "done":
		return Success, nil
	case "failure", "overdue":
		return Failure, nil
	}
	return 0, fmt.Errorf("unknown status %q", v)
}

type Urgency int

const (
	Normal Urgency = iota
	Warning
	Urgent
	Critical
	Overdue
	Completed
)

func (u Urgency) String() string {
	switch u {
	case Normal:
		return "normal"
	case Warning:
		return "warning"
	case Urgent:
		return "urgent"
	case Critical:
		return "critical"
	case Overdue:
		return "overdue"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("urgency(%d)", int(u))
	}
}

// rank orders the incomplete tiers by pressure: normal is 0, overdue is 4.
// Completed ranks below everything.
func (u Urgency) rank() int {
	if u == Completed {
		return -1
	}
	return int(u)
}

func DeriveStatus(t Task, now time.Time) Status {
	if t.IsCompleted {
		return Success
	}
	if t.Deadline.Before(now) {
		return Failure
	}
	return Ongoing
}

func DeriveUrgency(t Task, now time.Time) Urgency {
	if t.IsCompleted {
		return Completed
	}
	if t.Deadline.Before(now) {
		return Overdue
	}
	hours := t.Deadline.Sub(now).Hours()
	switch {
	case hours <= 1:
		return Critical
	case hours <= 24:
		return Urgent
	case hours <= 72:
		return Warning
	default:
		return Normal
	}
}

func FormatTimeDisplay(t Task, now time.Time) string {
	if t.IsCompleted {
		return "Completed"
	}
	if t.Deadline.Before(now) {
		return "Overdue by " + FormatDistance(t.Deadline, now)
	}
	return "Due in " + FormatDistance(t.Deadline, now)
}
