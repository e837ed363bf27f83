package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"inventorycore/pkg/domain"
)

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var deviceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		d, err := tx.CreateDevice(domain.Device{
			Category:     domain.CategoryLaptop,
			Name:         "Latitude 5440",
			SerialNumber: "SN-SQL-1",
			Condition:    "Good",
			Status:       domain.StatusAvailable,
		}, "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		_, err = tx.UpdateDevice(d.ID, "user-1", func(dev *domain.Device) error {
			dev.Condition = "Fair"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	device, ok := reopened.GetDevice(deviceID)
	if !ok {
		t.Fatalf("device missing after reopen")
	}
	if device.Condition != "Fair" {
		t.Fatalf("unexpected condition %q", device.Condition)
	}
	snaps := reopened.ListSnapshots(deviceID)
	if len(snaps) != 2 {
		t.Fatalf("expected snapshot log to survive reopen, got %d entries", len(snaps))
	}
	if snaps[0].Kind != domain.SnapshotCreated || snaps[1].Kind != domain.SnapshotUpdated {
		t.Fatalf("unexpected snapshot kinds %s/%s", snaps[0].Kind, snaps[1].Kind)
	}
}

func TestFailedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateDevice(domain.Device{SerialNumber: "SN-SQL-2"}, "user-1"); err != nil {
			return err
		}
		return context.Canceled
	}); err == nil {
		t.Fatalf("expected error from transaction")
	}

	if devices := store.ListDevices(); len(devices) != 0 {
		t.Fatalf("rolled-back device leaked: %d", len(devices))
	}
}
