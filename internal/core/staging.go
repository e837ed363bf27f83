package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventorycore/pkg/domain"
)

// trimNoopFields drops every proposed field whose value already matches the
// device, so downstream logic only sees real changes.
func trimNoopFields(fields DeviceFields, d Device) DeviceFields {
	eqStr := func(p *string, cur string) bool { return p != nil && strings.TrimSpace(*p) == strings.TrimSpace(cur) }
	eqRef := func(p, cur *string) bool {
		return p != nil && cur != nil && *p == *cur
	}
	if fields.Category != nil && *fields.Category == d.Category {
		fields.Category = nil
	}
	if eqRef(fields.CentreID, d.CentreID) {
		fields.CentreID = nil
	}
	if eqRef(fields.DepartmentID, d.DepartmentID) {
		fields.DepartmentID = nil
	}
	if eqStr(fields.Name, d.Name) {
		fields.Name = nil
	}
	if eqStr(fields.Model, d.Model) {
		fields.Model = nil
	}
	if eqStr(fields.Processor, d.Processor) {
		fields.Processor = nil
	}
	if eqStr(fields.RAMGB, d.RAMGB) {
		fields.RAMGB = nil
	}
	if eqStr(fields.HDDGB, d.HDDGB) {
		fields.HDDGB = nil
	}
	if eqStr(fields.SerialNumber, d.SerialNumber) {
		fields.SerialNumber = nil
	}
	if eqRef(fields.AssigneeID, d.AssigneeID) {
		fields.AssigneeID = nil
	}
	if eqStr(fields.Condition, d.Condition) {
		fields.Condition = nil
	}
	if eqStr(fields.Status, d.Status) {
		fields.Status = nil
	}
	if fields.Date != nil && d.Date != nil && fields.Date.Equal(*d.Date) {
		fields.Date = nil
	}
	if eqStr(fields.ReasonForUpdate, d.ReasonForUpdate) {
		fields.ReasonForUpdate = nil
	}
	return fields
}

// checkAssigneeChange enforces the set-if-empty rule: an assignee may be set
// on an unassigned device, but swapping an existing assignee requires the
// clearance workflow first.
func checkAssigneeChange(fields DeviceFields, d Device) error {
	if fields.AssigneeID == nil || d.AssigneeID == nil {
		return nil
	}
	if *fields.AssigneeID != *d.AssigneeID {
		return domain.Errorf(domain.KindInvalidState, EntityDevice, d.ID,
			"cannot change assignee, clear the current user first")
	}
	return nil
}

// checkSerialConflict rejects a serial number already used by another device.
func checkSerialConflict(view TransactionView, serial, selfID string) error {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil
	}
	for _, other := range view.ListDevices() {
		if other.ID != selfID && strings.TrimSpace(other.SerialNumber) == serial {
			return domain.Errorf(domain.KindConflictingIdentity, EntityDevice, selfID,
				"serial number %s is already used by device %s", serial, other.ID)
		}
	}
	return nil
}

// stageEdit queues a proposed edit for later approval. Any outstanding staged
// edit for the device is replaced, and the device drops back to unapproved so
// it reappears in the review queue.
func (s *Service) stageEdit(ctx context.Context, tx Transaction, actor User, device Device, fields DeviceFields, reason string) (StagedEdit, error) {
	if strings.TrimSpace(reason) == "" {
		return StagedEdit{}, domain.Errorf(domain.KindValidation, EntityStagedEdit, "",
			"reason for update is required")
	}
	if existing, ok := tx.Snapshot().StagedEditForDevice(device.ID); ok {
		if err := tx.DeleteStagedEdit(existing.ID); err != nil {
			return StagedEdit{}, err
		}
	}
	edit, err := tx.CreateStagedEdit(StagedEdit{
		DeviceID:     device.ID,
		Fields:       fields,
		Reason:       reason,
		ProposedByID: actor.ID,
	})
	if err != nil {
		return StagedEdit{}, err
	}
	if _, err := tx.UpdateDevice(device.ID, actor.ID, func(d *Device) error {
		d.IsApproved = false
		d.ApprovedByID = nil
		return nil
	}); err != nil {
		return StagedEdit{}, err
	}
	s.notifyAdmins(ctx, tx, actor,
		fmt.Sprintf("Update request for device %s by %s awaiting approval.", device.SerialNumber, actor.DisplayName()),
		EntityStagedEdit, edit.ID)
	return edit, nil
}

// applyStagedEdit copies every proposed field onto the device inside the
// approval transaction and removes the staged edit. It returns the old and
// new assignee so the caller can fan out assignment notifications.
func (s *Service) applyStagedEdit(tx Transaction, actor User, device Device, edit StagedEdit, now time.Time) (oldAssignee, newAssignee *string, err error) {
	if device.IsDisposed {
		return nil, nil, domain.Errorf(domain.KindInvalidState, EntityDevice, device.ID,
			"cannot apply an update to a disposed device")
	}
	if edit.Fields.SerialNumber != nil {
		if err := checkSerialConflict(tx.Snapshot(), *edit.Fields.SerialNumber, device.ID); err != nil {
			return nil, nil, err
		}
	}
	oldAssignee = device.AssigneeID

	updated, err := tx.UpdateDevice(device.ID, actor.ID, func(d *Device) error {
		edit.Fields.Apply(d)
		if d.Date == nil {
			today := now
			d.Date = &today
		}
		d.IsApproved = true
		d.ApprovedByID = &actor.ID
		d.PendingClarification = false
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := tx.DeleteStagedEdit(edit.ID); err != nil {
		return nil, nil, err
	}
	return oldAssignee, updated.AssigneeID, nil
}
