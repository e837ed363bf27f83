package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventorycore/pkg/domain"
)

type ruleFixtureView struct {
	devices    []Device
	edits      []StagedEdit
	agreements []AssignmentAgreement
	snapshots  map[string][]DeviceSnapshot
}

func (v ruleFixtureView) ListDevices() []Device                 { return v.devices }
func (v ruleFixtureView) ListStagedEdits() []StagedEdit         { return v.edits }
func (v ruleFixtureView) ListAgreements() []AssignmentAgreement { return v.agreements }
func (v ruleFixtureView) ListNotifications() []Notification     { return nil }
func (v ruleFixtureView) ListSnapshots(deviceID string) []DeviceSnapshot {
	return v.snapshots[deviceID]
}
func (v ruleFixtureView) FindDevice(string) (Device, bool)         { return Device{}, false }
func (v ruleFixtureView) FindStagedEdit(string) (StagedEdit, bool) { return StagedEdit{}, false }
func (v ruleFixtureView) FindAgreement(string) (AssignmentAgreement, bool) {
	return AssignmentAgreement{}, false
}
func (v ruleFixtureView) FindEmployee(string) (Employee, bool) { return Employee{}, false }
func (v ruleFixtureView) FindUser(string) (User, bool)         { return User{}, false }

func blockingCount(res Result) int {
	n := 0
	for _, v := range res.Violations {
		if v.Severity == SeverityBlock {
			n++
		}
	}
	return n
}

func TestSerialUniqueRule(t *testing.T) {
	rule := NewSerialUniqueRule()
	view := ruleFixtureView{devices: []Device{
		{Base: Base{ID: "d1"}, SerialNumber: "SN-1"},
		{Base: Base{ID: "d2"}, SerialNumber: "SN-2"},
		{Base: Base{ID: "d3"}, SerialNumber: "SN-1"},
		{Base: Base{ID: "d4"}, SerialNumber: "  "},
		{Base: Base{ID: "d5"}, SerialNumber: ""},
	}}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if blockingCount(res) != 1 {
		t.Fatalf("expected 1 violation, got %+v", res.Violations)
	}
	if res.Violations[0].EntityID != "d3" {
		t.Fatalf("violation should name the duplicate, got %s", res.Violations[0].EntityID)
	}
}

func TestSingleStagedEditRule(t *testing.T) {
	rule := NewSingleStagedEditRule()
	view := ruleFixtureView{edits: []StagedEdit{
		{Base: Base{ID: "e1"}, DeviceID: "d1"},
		{Base: Base{ID: "e2"}, DeviceID: "d1"},
		{Base: Base{ID: "e3"}, DeviceID: "d2"},
	}}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if blockingCount(res) != 1 {
		t.Fatalf("expected 1 violation, got %+v", res.Violations)
	}
}

func TestSingleActiveAgreementRule(t *testing.T) {
	rule := NewSingleActiveAgreementRule()
	view := ruleFixtureView{agreements: []AssignmentAgreement{
		{Base: Base{ID: "a1"}, DeviceID: "d1"},
		{Base: Base{ID: "a2"}, DeviceID: "d1", IsArchived: true},
		{Base: Base{ID: "a3"}, DeviceID: "d1"},
	}}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if blockingCount(res) != 1 {
		t.Fatalf("archived agreements must not count, got %+v", res.Violations)
	}
}

func TestApprovalConsistencyRule(t *testing.T) {
	rule := NewApprovalConsistencyRule()
	approver := "u1"
	view := ruleFixtureView{devices: []Device{
		{Base: Base{ID: "ok"}, IsApproved: true, ApprovedByID: &approver},
		{Base: Base{ID: "orphan"}, IsApproved: true},
		{Base: Base{ID: "ghost"}, IsDisposed: true, Status: domain.StatusAvailable, DisposalReason: "worn out"},
		{Base: Base{ID: "mute"}, IsDisposed: true, Status: domain.StatusDisposed},
		{Base: Base{ID: "gone"}, IsDisposed: true, Status: domain.StatusDisposed, DisposalReason: "worn out"},
	}}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if blockingCount(res) != 3 {
		t.Fatalf("expected 3 violations, got %+v", res.Violations)
	}
}

func TestSnapshotOrderRule(t *testing.T) {
	rule := NewSnapshotOrderRule()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	view := ruleFixtureView{
		devices: []Device{{Base: Base{ID: "d1"}}, {Base: Base{ID: "d2"}}},
		snapshots: map[string][]DeviceSnapshot{
			"d1": {
				{DeviceID: "d1", Timestamp: base},
				{DeviceID: "d1", Timestamp: base.Add(time.Hour)},
			},
			"d2": {
				{DeviceID: "d2", Timestamp: base.Add(time.Hour)},
				{DeviceID: "d2", Timestamp: base},
			},
		},
	}
	res, err := rule.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if blockingCount(res) != 1 {
		t.Fatalf("expected 1 violation, got %+v", res.Violations)
	}
	if res.Violations[0].EntityID != "d2" {
		t.Fatalf("violation should name the disordered log, got %s", res.Violations[0].EntityID)
	}
}

func TestDefaultRulesBlockCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Bypass the service checks and write a duplicate serial directly. The
	// engine must still refuse the commit.
	f.createDevice(t, f.admin, "SN-RULE")
	_, err := f.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateDevice(Device{SerialNumber: "SN-RULE", IsApproved: true, ApprovedByID: &f.admin.ID}, f.admin.ID)
		return err
	})
	var violation RuleViolationError
	if err == nil {
		t.Fatalf("duplicate serial commit must be blocked")
	}
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %T %v", err, err)
	}
	devices := f.store.ListDevices()
	if len(devices) != 1 {
		t.Fatalf("blocked commit must not be visible, got %d devices", len(devices))
	}
}
