package bucket

import "time"

// Back names the list page a single task view links back to.
type Back string

const (
	BackInbox     Back = "inbox"
	BackCompleted Back = "completed"
	BackTasks     Back = "tasks"
)

// Path is the list route for the back link.
func (b Back) Path() string {
	switch b {
	case BackInbox:
		return "/tasks/inbox"
	case BackCompleted:
		return "/tasks/completed"
	default:
		return "/tasks"
	}
}

func inPast(v View, b *Boundaries) bool {
	d := v.date()
	for _, r := range pastRules {
		// completion is not passed: a finished overdue task still counts as past.
		if r.match(d, false, b) {
			return true
		}
	}
	return false
}

func back(v View, b *Boundaries) Back {
	if !v.Scheduled() || !v.valid() {
		return BackInbox
	}
	if v.Completed && inPast(v, b) {
		return BackCompleted
	}
	return BackTasks
}

// BackBucket resolves where a single-task view should return to.
func BackBucket(v View, now time.Time, cal Calendar) Back {
	b := cal.Boundaries(now)
	return back(v, &b)
}

// History returns the tasks the completed page shows: finished, scheduled,
// and dated before today. Input order is kept.
func History[T Viewer](tasks []T, now time.Time, cal Calendar) []T {
	b := cal.Boundaries(now)
	var out []T
	for _, t := range tasks {
		if back(t.BucketView(), &b) == BackCompleted {
			out = append(out, t)
		}
	}
	return out
}
