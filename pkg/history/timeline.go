package history

import (
	"sort"
	"time"

	"inventorycore/pkg/domain"
)

// Interval is one stretch of device history during which the comparison
// tuple (assignee, department, centre, status, condition) held steady.
type Interval struct {
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end"` // nil means the interval is still open
	Assignee   string     `json:"assignee"`
	Department string     `json:"department"`
	Centre     string     `json:"centre"`
	Status     string     `json:"status"`
	Condition  string     `json:"condition"`
	ChangedBy  string     `json:"changed_by"`
}

// Current reports whether the interval is the open-ended one.
func (iv Interval) Current() bool { return iv.End == nil }

type stateTuple struct {
	assignee   string
	department string
	centre     string
	status     string
	condition  string
}

func (r *Reconstructor) tupleOf(snap domain.Snapshot) stateTuple {
	d := snap.Device
	assignee := Unassigned
	if d.AssigneeID != nil && *d.AssigneeID != "" {
		if name, ok := r.resolver.ResolveDisplayName(domain.EntityEmployee, *d.AssigneeID); ok {
			assignee = name
		} else {
			assignee = Placeholder
		}
	}
	return stateTuple{
		assignee:   assignee,
		department: resolveRef(r.resolver, domain.EntityDepartment, d.DepartmentID),
		centre:     resolveRef(r.resolver, domain.EntityCentre, d.CentreID),
		status:     orPlaceholder(d.Status),
		condition:  orPlaceholder(d.Condition),
	}
}

// Timeline reconstructs the state-interval view of a device's history.
// Snapshots are walked oldest to newest: the first snapshot opens an
// interval, and every change to the comparison tuple closes it at the
// changing snapshot's timestamp and opens a new one. Fields outside the
// tuple never split an interval. The newest interval is open-ended, and the
// result is ordered newest interval first.
func (r *Reconstructor) Timeline(snapshots []domain.Snapshot) []Interval {
	if len(snapshots) == 0 {
		return nil
	}
	snaps := sortedAscending(snapshots)

	var (
		timeline  []Interval
		current   stateTuple
		started   bool
		start     time.Time
		changedBy string
	)

	for _, snap := range snaps {
		tuple := r.tupleOf(snap)
		if !started {
			current = tuple
			start = snap.Timestamp
			changedBy = r.actorDisplay(snap.ActorID, "System")
			started = true
			continue
		}
		if tuple == current {
			continue
		}
		end := snap.Timestamp
		timeline = append(timeline, Interval{
			Start:      start,
			End:        &end,
			Assignee:   current.assignee,
			Department: current.department,
			Centre:     current.centre,
			Status:     current.status,
			Condition:  current.condition,
			ChangedBy:  changedBy,
		})
		current = tuple
		start = snap.Timestamp
		changedBy = r.actorDisplay(snap.ActorID, "System")
	}

	timeline = append(timeline, Interval{
		Start:      start,
		Assignee:   current.assignee,
		Department: current.department,
		Centre:     current.centre,
		Status:     current.status,
		Condition:  current.condition,
		ChangedBy:  changedBy,
	})

	// Newest first for display.
	for i, j := 0, len(timeline)-1; i < j; i, j = i+1, j-1 {
		timeline[i], timeline[j] = timeline[j], timeline[i]
	}
	return timeline
}

func (r *Reconstructor) actorDisplay(actorID, fallback string) string {
	if actorID == "" {
		return fallback
	}
	if name, ok := r.resolver.ResolveDisplayName(domain.EntityUser, actorID); ok {
		return name
	}
	return fallback
}

func sortedAscending(snapshots []domain.Snapshot) []domain.Snapshot {
	snaps := make([]domain.Snapshot, len(snapshots))
	copy(snaps, snapshots)
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
	return snaps
}
