package core

import (
	"context"
	"fmt"
	"strings"

	"inventorycore/pkg/domain"
)

// NewApprovalConsistencyRule returns the rule checking approval and disposal
// bookkeeping: approved devices must record their approver, and disposed
// devices must carry the disposed status and a disposal reason.
func NewApprovalConsistencyRule() domain.Rule {
	return approvalConsistencyRule{}
}

type approvalConsistencyRule struct{}

func (approvalConsistencyRule) Name() string { return "approval_consistency" }

func (approvalConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, device := range view.ListDevices() {
		if device.IsApproved && device.ApprovedByID == nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "approval_consistency",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("device %s is approved without an approver", device.ID),
				Entity:   domain.EntityDevice,
				EntityID: device.ID,
			})
		}
		if device.IsDisposed && device.Status != domain.StatusDisposed {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "approval_consistency",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("device %s is disposed but carries status %q", device.ID, device.Status),
				Entity:   domain.EntityDevice,
				EntityID: device.ID,
			})
		}
		if device.IsDisposed && strings.TrimSpace(device.DisposalReason) == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "approval_consistency",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("device %s is disposed without a disposal reason", device.ID),
				Entity:   domain.EntityDevice,
				EntityID: device.ID,
			})
		}
	}
	return res, nil
}
