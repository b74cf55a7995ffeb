package task

import (
	"sort"
	"time"
)

type Buckets struct {
	Ongoing []Task
	Success []Task
	Failure []Task
}

func (b Buckets) Get(s Status) []Task {
	switch s {
	case Success:
		return b.Success
	case Failure:
		return b.Failure
	default:
		return b.Ongoing
	}
}

func (b Buckets) Len() int {
	return len(b.Ongoing) + len(b.Success) + len(b.Failure)
}

// FilterByStatus derives the status of every task at now; it never trusts
// a previously computed value.
func FilterByStatus(tasks []Task, status Status, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if DeriveStatus(t, now) == status {
			out = append(out, t)
		}
	}
	return out
}

// SortByDeadline returns a copy ordered by deadline, earliest first. Equal
// deadlines keep their input order.
func SortByDeadline(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

func Bucketize(tasks []Task, now time.Time) Buckets {
	return Buckets{
		Ongoing: SortByDeadline(FilterByStatus(tasks, Ongoing, now)),
		Success: SortByDeadline(FilterByStatus(tasks, Success, now)),
		Failure: SortByDeadline(FilterByStatus(tasks, Failure, now)),
	}
}
