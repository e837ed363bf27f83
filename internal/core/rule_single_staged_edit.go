package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewSingleStagedEditRule returns the rule limiting each device to at most
// one outstanding staged edit.
func NewSingleStagedEditRule() domain.Rule {
	return singleStagedEditRule{}
}

type singleStagedEditRule struct{}

func (singleStagedEditRule) Name() string { return "single_staged_edit" }

func (singleStagedEditRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	perDevice := make(map[string]int)
	for _, edit := range view.ListStagedEdits() {
		perDevice[edit.DeviceID]++
	}
	res := domain.Result{}
	for deviceID, count := range perDevice {
		if count > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "single_staged_edit",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("device %s has %d staged edits, expected at most one", deviceID, count),
				Entity:   domain.EntityDevice,
				EntityID: deviceID,
			})
		}
	}
	return res, nil
}
