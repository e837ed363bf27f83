package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewSnapshotOrderRule returns the rule checking that every device's snapshot
// log is ordered by timestamp. History reconstruction assumes ascending
// input, so a disordered log is a blocking defect.
func NewSnapshotOrderRule() domain.Rule {
	return snapshotOrderRule{}
}

type snapshotOrderRule struct{}

func (snapshotOrderRule) Name() string { return "snapshot_order" }

func (snapshotOrderRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, device := range view.ListDevices() {
		snapshots := view.ListSnapshots(device.ID)
		for i := 1; i < len(snapshots); i++ {
			if snapshots[i].Timestamp.Before(snapshots[i-1].Timestamp) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "snapshot_order",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("device %s snapshot log regresses at index %d", device.ID, i),
					Entity:   domain.EntityDevice,
					EntityID: device.ID,
				})
				break
			}
		}
	}
	return res, nil
}
