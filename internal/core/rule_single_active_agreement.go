package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewSingleActiveAgreementRule returns the rule limiting each device to at
// most one non-archived assignment agreement.
func NewSingleActiveAgreementRule() domain.Rule {
	return singleActiveAgreementRule{}
}

type singleActiveAgreementRule struct{}

func (singleActiveAgreementRule) Name() string { return "single_active_agreement" }

func (singleActiveAgreementRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	perDevice := make(map[string]int)
	for _, agreement := range view.ListAgreements() {
		if agreement.IsArchived {
			continue
		}
		perDevice[agreement.DeviceID]++
	}
	res := domain.Result{}
	for deviceID, count := range perDevice {
		if count > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "single_active_agreement",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("device %s has %d active agreements, expected at most one", deviceID, count),
				Entity:   domain.EntityDevice,
				EntityID: deviceID,
			})
		}
	}
	return res, nil
}
