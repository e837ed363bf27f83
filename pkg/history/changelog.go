package history

import (
	"strconv"
	"strings"
	"time"

	"inventorycore/pkg/domain"
)

// DefaultBurstWindow is the gap under which consecutive saves by one actor
// collapse into a single change-log entry.
const DefaultBurstWindow = 15 * time.Minute

// Change kinds emitted in the change log.
const (
	ChangeCreated       = "Created"
	ChangeEdited        = "Edited"
	ChangeMultipleSaves = "Edited (multiple saves)"
)

// FieldChange is one field-level difference within a change-log entry.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Entry is one grouped change-log row.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      string        `json:"kind"`
	User      string        `json:"user"`
	Diff      []FieldChange `json:"diff"`
	Multiple  bool          `json:"multiple"`
}

// Reconstructor rebuilds display-ready history from a device's snapshot log.
type Reconstructor struct {
	resolver    Resolver
	burstWindow time.Duration
}

// NewReconstructor builds a Reconstructor using the default burst window.
func NewReconstructor(resolver Resolver) *Reconstructor {
	return &Reconstructor{resolver: resolver, burstWindow: DefaultBurstWindow}
}

// WithBurstWindow overrides the burst window. Non-positive values restore the
// default.
func (r *Reconstructor) WithBurstWindow(window time.Duration) *Reconstructor {
	if window <= 0 {
		window = DefaultBurstWindow
	}
	return &Reconstructor{resolver: r.resolver, burstWindow: window}
}

// ChangeLog reconstructs the grouped change log, newest entry first.
//
// Walking newest to oldest, a creation snapshot always becomes its own
// "Created" entry. Any other snapshot anchors a burst: consecutive older
// non-creation snapshots by the same actor, each captured within the burst
// window of the member immediately newer than it. The snapshot preceding the
// oldest member supplies the before state, the newest member the after state
// and timestamp. Reference fields resolve to display strings at diff time,
// and fields whose trimmed before and after strings match are dropped. The
// entry is emitted when the diff is non-empty or the burst has a single
// member; a multi-save burst whose edits cancel out disappears entirely.
func (r *Reconstructor) ChangeLog(snapshots []domain.Snapshot) []Entry {
	if len(snapshots) == 0 {
		return nil
	}
	asc := sortedAscending(snapshots)

	// Newest first for grouping.
	snaps := make([]domain.Snapshot, len(asc))
	for i, s := range asc {
		snaps[len(asc)-1-i] = s
	}

	var entries []Entry
	i := 0
	for i < len(snaps) {
		snap := snaps[i]
		user := r.actorDisplay(snap.ActorID, "Unknown")

		if snap.Kind == domain.SnapshotCreated {
			entries = append(entries, Entry{
				Timestamp: snap.Timestamp,
				Kind:      ChangeCreated,
				User:      user,
			})
			i++
			continue
		}

		// Collect the burst. Each candidate must share the anchor's actor
		// and sit within the window of the member immediately newer than
		// it. Creation snapshots are never absorbed so they always emit.
		j := i + 1
		newest := snap
		for j < len(snaps) {
			candidate := snaps[j]
			if candidate.Kind == domain.SnapshotCreated {
				break
			}
			if candidate.ActorID != snap.ActorID {
				break
			}
			if newest.Timestamp.Sub(candidate.Timestamp) > r.burstWindow {
				break
			}
			newest = candidate
			j++
		}

		// before is the snapshot preceding the oldest burst member.
		if j >= len(snaps) {
			i = j
			continue
		}
		before := snaps[j].Device
		after := snap.Device

		diff := r.diffDevices(before, after)
		single := j-i == 1
		if len(diff) > 0 || single {
			kind := ChangeMultipleSaves
			if single {
				kind = ChangeEdited
			}
			entries = append(entries, Entry{
				Timestamp: snap.Timestamp,
				Kind:      kind,
				User:      user,
				Diff:      diff,
				Multiple:  !single,
			})
		}
		i = j
	}
	return entries
}

// diffField pairs a display label with before/after renderings.
type diffField struct {
	label string
	old   string
	new   string
}

func (r *Reconstructor) diffDevices(before, after domain.Device) []FieldChange {
	res := r.resolver
	fields := []diffField{
		{"Centre", resolveRef(res, domain.EntityCentre, before.CentreID), resolveRef(res, domain.EntityCentre, after.CentreID)},
		{"Department", resolveRef(res, domain.EntityDepartment, before.DepartmentID), resolveRef(res, domain.EntityDepartment, after.DepartmentID)},
		{"Device Name", orPlaceholder(before.Name), orPlaceholder(after.Name)},
		{"System Model", orPlaceholder(before.Model), orPlaceholder(after.Model)},
		{"Processor", orPlaceholder(before.Processor), orPlaceholder(after.Processor)},
		{"RAM (GB)", orPlaceholder(before.RAMGB), orPlaceholder(after.RAMGB)},
		{"HDD (GB)", orPlaceholder(before.HDDGB), orPlaceholder(after.HDDGB)},
		{"Serial Number", orPlaceholder(before.SerialNumber), orPlaceholder(after.SerialNumber)},
		{"Assignee", resolveRef(res, domain.EntityEmployee, before.AssigneeID), resolveRef(res, domain.EntityEmployee, after.AssigneeID)},
		{"Device Condition", orPlaceholder(before.Condition), orPlaceholder(after.Condition)},
		{"Status", orPlaceholder(before.Status), orPlaceholder(after.Status)},
		{"Added By", resolveRef(res, domain.EntityUser, before.AddedByID), resolveRef(res, domain.EntityUser, after.AddedByID)},
		{"Approved By", resolveRef(res, domain.EntityUser, before.ApprovedByID), resolveRef(res, domain.EntityUser, after.ApprovedByID)},
		{"Is Approved", strconv.FormatBool(before.IsApproved), strconv.FormatBool(after.IsApproved)},
		{"Reason for Update", orPlaceholder(before.ReasonForUpdate), orPlaceholder(after.ReasonForUpdate)},
		{"Category", orPlaceholder(string(before.Category)), orPlaceholder(string(after.Category))},
	}

	var out []FieldChange
	for _, f := range fields {
		if strings.TrimSpace(f.old) == strings.TrimSpace(f.new) {
			continue
		}
		out = append(out, FieldChange{Field: f.label, Old: f.old, New: f.new})
	}
	return out
}
