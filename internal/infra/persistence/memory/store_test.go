package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventorycore/pkg/domain"
)

func strPtr(s string) *string { return &s }

func newTestDevice(serial string) Device {
	return Device{
		Category:     domain.CategoryLaptop,
		Name:         "Latitude 5440",
		Model:        "Dell Latitude",
		SerialNumber: serial,
		Condition:    "Good",
		Status:       domain.StatusAvailable,
	}
}

func TestCreateDeviceAppendsCreationSnapshot(t *testing.T) {
	store := NewStore(nil)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return now })

	var created Device
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-001"), "user-1")
		if err != nil {
			return err
		}
		created = d
		return nil
	}); err != nil {
		t.Fatalf("create device: %v", err)
	}

	if created.ID == "" {
		t.Fatalf("expected generated device id")
	}
	if !created.CreatedAt.Equal(now) || !created.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps %v, got %v/%v", now, created.CreatedAt, created.UpdatedAt)
	}

	snaps := store.ListSnapshots(created.ID)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Kind != domain.SnapshotCreated {
		t.Fatalf("expected created snapshot, got %s", snaps[0].Kind)
	}
	if snaps[0].ActorID != "user-1" {
		t.Fatalf("expected actor user-1, got %q", snaps[0].ActorID)
	}
	if !snaps[0].Timestamp.Equal(now) {
		t.Fatalf("expected snapshot at %v, got %v", now, snaps[0].Timestamp)
	}
	if snaps[0].Device.SerialNumber != "SN-001" {
		t.Fatalf("snapshot device payload mismatch: %+v", snaps[0].Device)
	}
}

func TestUpdateDeviceAppendsOrderedSnapshots(t *testing.T) {
	store := NewStore(nil)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return now })

	var id string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-002"), "user-1")
		if err != nil {
			return err
		}
		id = d.ID
		return nil
	}); err != nil {
		t.Fatalf("create device: %v", err)
	}

	now = now.Add(10 * time.Minute)
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateDevice(id, "user-2", func(d *Device) error {
			d.Condition = "Damaged"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update device: %v", err)
	}

	snaps := store.ListSnapshots(id)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Kind != domain.SnapshotCreated || snaps[1].Kind != domain.SnapshotUpdated {
		t.Fatalf("unexpected snapshot kinds %s/%s", snaps[0].Kind, snaps[1].Kind)
	}
	if !snaps[1].Timestamp.After(snaps[0].Timestamp) {
		t.Fatalf("expected ascending snapshot order")
	}
	if snaps[0].Device.Condition != "Good" {
		t.Fatalf("first snapshot must keep pre-update state, got %q", snaps[0].Device.Condition)
	}
	if snaps[1].Device.Condition != "Damaged" {
		t.Fatalf("second snapshot must carry updated state, got %q", snaps[1].Device.Condition)
	}
	if snaps[1].ActorID != "user-2" {
		t.Fatalf("expected actor user-2, got %q", snaps[1].ActorID)
	}
}

func TestFailedTransactionLeavesNoSnapshot(t *testing.T) {
	store := NewStore(nil)

	var id string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-003"), "user-1")
		if err != nil {
			return err
		}
		id = d.ID
		return nil
	}); err != nil {
		t.Fatalf("create device: %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.UpdateDevice(id, "user-1", func(d *Device) error {
			d.Condition = "Broken"
			return nil
		}); err != nil {
			return err
		}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	device, ok := store.GetDevice(id)
	if !ok {
		t.Fatalf("device missing after rollback")
	}
	if device.Condition != "Good" {
		t.Fatalf("expected rollback to keep condition Good, got %q", device.Condition)
	}
	if snaps := store.ListSnapshots(id); len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot after rollback, got %d", len(snaps))
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block_everything" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "block_everything",
			Severity: domain.SeverityBlock,
			Message:  "blocked",
		})
	}
	return res, nil
}

func TestBlockingRuleRejectsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateDevice(newTestDevice("SN-004"), "user-1")
		return err
	})

	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if devices := store.ListDevices(); len(devices) != 0 {
		t.Fatalf("expected no devices after rejection, got %d", len(devices))
	}
}

func TestDeleteDeviceDropsStagedEditKeepsHistory(t *testing.T) {
	store := NewStore(nil)

	var deviceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-005"), "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		_, err = tx.CreateStagedEdit(StagedEdit{
			DeviceID:     d.ID,
			Fields:       domain.DeviceFields{Condition: strPtr("Fair")},
			Reason:       "wear",
			ProposedByID: "user-2",
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteDevice(deviceID, "manager-1")
	}); err != nil {
		t.Fatalf("delete device: %v", err)
	}

	if _, ok := store.GetDevice(deviceID); ok {
		t.Fatalf("device should be gone")
	}
	if edits := store.ListStagedEdits(); len(edits) != 0 {
		t.Fatalf("expected staged edits removed with device, got %d", len(edits))
	}
	snaps := store.ListSnapshots(deviceID)
	if len(snaps) != 2 {
		t.Fatalf("expected history retained, got %d snapshots", len(snaps))
	}
	if snaps[1].Kind != domain.SnapshotDeleted {
		t.Fatalf("expected final snapshot kind deleted, got %s", snaps[1].Kind)
	}
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	store := NewStore(nil)

	var id string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d := newTestDevice("SN-006")
		d.AssigneeID = strPtr("emp-1")
		created, err := tx.CreateDevice(d, "user-1")
		if err != nil {
			return err
		}
		id = created.ID
		return nil
	}); err != nil {
		t.Fatalf("create device: %v", err)
	}

	first, _ := store.GetDevice(id)
	*first.AssigneeID = "tampered"
	first.Condition = "tampered"

	second, _ := store.GetDevice(id)
	if *second.AssigneeID != "emp-1" {
		t.Fatalf("pointer field leaked between copies: %q", *second.AssigneeID)
	}
	if second.Condition != "Good" {
		t.Fatalf("value field leaked between copies: %q", second.Condition)
	}
}

func TestStagedEditAndAgreementLookups(t *testing.T) {
	store := NewStore(nil)

	var deviceID, editID, agreementID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		emp, err := tx.CreateEmployee(Employee{FirstName: "Jane", LastName: "Mwangi", StaffNumber: "EMP-7"})
		if err != nil {
			return err
		}
		d, err := tx.CreateDevice(newTestDevice("SN-007"), "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		edit, err := tx.CreateStagedEdit(StagedEdit{DeviceID: d.ID, Fields: domain.DeviceFields{Name: strPtr("Renamed")}, ProposedByID: "user-2"})
		if err != nil {
			return err
		}
		editID = edit.ID
		agr, err := tx.CreateAgreement(AssignmentAgreement{DeviceID: d.ID, EmployeeID: emp.ID})
		if err != nil {
			return err
		}
		agreementID = agr.ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.View(context.Background(), func(v TransactionView) error {
		edit, ok := v.StagedEditForDevice(deviceID)
		if !ok || edit.ID != editID {
			t.Fatalf("staged edit lookup failed: ok=%v id=%q", ok, edit.ID)
		}
		agr, ok := v.ActiveAgreementForDevice(deviceID)
		if !ok || agr.ID != agreementID {
			t.Fatalf("active agreement lookup failed: ok=%v id=%q", ok, agr.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateAgreement(agreementID, func(a *AssignmentAgreement) error {
			a.IsArchived = true
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("archive agreement: %v", err)
	}

	if err := store.View(context.Background(), func(v TransactionView) error {
		if _, ok := v.ActiveAgreementForDevice(deviceID); ok {
			t.Fatalf("archived agreement should not be active")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)

	var deviceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-008"), "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		_, err = tx.UpdateDevice(d.ID, "user-1", func(dev *Device) error {
			dev.Status = "In Repair"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	state := store.ExportState()
	restored := NewStore(nil)
	restored.ImportState(state)

	device, ok := restored.GetDevice(deviceID)
	if !ok {
		t.Fatalf("device missing after import")
	}
	if device.Status != "In Repair" {
		t.Fatalf("unexpected status after import: %q", device.Status)
	}
	snaps := restored.ListSnapshots(deviceID)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots after import, got %d", len(snaps))
	}
	if !snaps[0].Timestamp.Before(snaps[1].Timestamp) && !snaps[0].Timestamp.Equal(snaps[1].Timestamp) {
		t.Fatalf("expected ascending snapshot order after import")
	}
}

func TestNotificationsForOrigin(t *testing.T) {
	store := NewStore(nil)

	var deviceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		d, err := tx.CreateDevice(newTestDevice("SN-009"), "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		for _, user := range []string{"admin-1", "admin-2"} {
			if _, err := tx.CreateNotification(Notification{
				UserID:     user,
				Message:    "new device awaiting approval",
				OriginKind: domain.EntityDevice,
				OriginID:   d.ID,
			}); err != nil {
				return err
			}
		}
		_, err = tx.CreateNotification(Notification{UserID: "admin-1", Message: "unrelated", OriginKind: domain.EntityStagedEdit, OriginID: "other"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := store.View(context.Background(), func(v TransactionView) error {
		got := v.NotificationsForOrigin(domain.EntityDevice, deviceID)
		if len(got) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(got))
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateMissingDeviceReturnsNotFound(t *testing.T) {
	store := NewStore(nil)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateDevice("missing", "user-1", func(*Device) error { return nil })
		return err
	})
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.Entity != domain.EntityDevice {
		t.Fatalf("unexpected entity %q", notFound.Entity)
	}
}
