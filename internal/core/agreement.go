package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventorycore/pkg/domain"
)

// Issue opens an assignment agreement cycle for a device. The device must
// carry an assignee, and only one non-archived agreement may exist per
// device at a time.
func (s *Service) Issue(ctx context.Context, actor User, deviceID string) (agreement AssignmentAgreement, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "issue_agreement", start, err) }(s.nowFn())

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), deviceID)
		if err != nil {
			return err
		}
		if device.AssigneeID == nil {
			return domain.Errorf(domain.KindInvalidState, EntityDevice, deviceID,
				"device must have an assignee before issuance")
		}
		if existing, ok := tx.Snapshot().ActiveAgreementForDevice(deviceID); ok {
			return domain.Errorf(domain.KindConflictingState, EntityAgreement, existing.ID,
				"device %s already has an active agreement", deviceID)
		}
		agreement, err = tx.CreateAgreement(AssignmentAgreement{
			DeviceID:   deviceID,
			EmployeeID: *device.AssigneeID,
		})
		return err
	})
	if err != nil {
		return AssignmentAgreement{}, res, err
	}
	return agreement, res, nil
}

// SignIssuance completes the issuance half of the agreement: both parties
// sign and the employee accepts the terms in one submission. Double
// submission is rejected.
func (s *Service) SignIssuance(ctx context.Context, actor User, agreementID, employeeSig, itSig string, acceptTerms bool) (signed AssignmentAgreement, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "sign_issuance", start, err) }(s.nowFn())

	if strings.TrimSpace(employeeSig) == "" {
		return AssignmentAgreement{}, Result{}, domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
			"employee signature is required")
	}
	if strings.TrimSpace(itSig) == "" {
		return AssignmentAgreement{}, Result{}, domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
			"IT staff signature is required")
	}
	if !acceptTerms {
		return AssignmentAgreement{}, Result{}, domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
			"terms must be accepted")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		agreement, ok := tx.FindAgreement(agreementID)
		if !ok {
			return ErrNotFound{Entity: EntityAgreement, ID: agreementID}
		}
		if agreement.EmployeeSignedIssuance {
			return domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
				"issuance agreement has already been signed")
		}
		now := s.nowFn()
		signed, err = tx.UpdateAgreement(agreementID, func(a *AssignmentAgreement) error {
			a.IssuanceEmployeeSignature = employeeSig
			a.IssuanceITSignature = itSig
			a.IssuanceDate = &now
			a.IssuanceITUserID = &actor.ID
			a.EmployeeSignedIssuance = true
			a.ITApprovedIssuance = true
			return nil
		})
		if err != nil {
			return err
		}
		device, err := findDevice(tx.Snapshot(), agreement.DeviceID)
		if err != nil {
			return err
		}
		if _, err := tx.UpdateDevice(device.ID, actor.ID, func(d *Device) error {
			d.UAFSigned = true
			return nil
		}); err != nil {
			return err
		}
		s.notifier.Notify(ctx, tx, agreement.EmployeeID,
			fmt.Sprintf("Your issuance agreement for device %s has been signed.", device.SerialNumber),
			EntityAgreement, agreementID)
		return nil
	})
	if err != nil {
		return AssignmentAgreement{}, res, err
	}
	return signed, res, nil
}

// Clear completes the clearance half of the agreement and releases the
// device. The agreement must be in the issued state; the archive happens
// before the device is cleared so no view observes an active agreement on an
// unassigned device.
func (s *Service) Clear(ctx context.Context, actor User, agreementID, employeeSig, remarks string) (cleared AssignmentAgreement, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "clear_agreement", start, err) }(s.nowFn())

	if strings.TrimSpace(employeeSig) == "" {
		return AssignmentAgreement{}, Result{}, domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
			"employee signature is required")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		agreement, ok := tx.FindAgreement(agreementID)
		if !ok {
			return ErrNotFound{Entity: EntityAgreement, ID: agreementID}
		}
		switch agreement.State() {
		case domain.AgreementCleared:
			return domain.Errorf(domain.KindValidation, EntityAgreement, agreementID,
				"clearance has already been signed")
		case domain.AgreementIssuancePending:
			return domain.Errorf(domain.KindInvalidState, EntityAgreement, agreementID,
				"issuance agreement must be signed before clearance")
		}

		now := s.nowFn()
		cleared, err = tx.UpdateAgreement(agreementID, func(a *AssignmentAgreement) error {
			a.ClearanceEmployeeSignature = employeeSig
			a.ClearanceDate = &now
			a.ClearanceITUserID = &actor.ID
			a.ClearanceRemarks = remarks
			a.EmployeeSignedClearance = true
			a.ITApprovedClearance = true
			a.IsArchived = true
			return nil
		})
		if err != nil {
			return err
		}

		employeeName := employeeDisplay(tx.Snapshot(), agreement.EmployeeID)
		device, err := findDevice(tx.Snapshot(), agreement.DeviceID)
		if err != nil {
			return err
		}
		if _, err := tx.UpdateDevice(device.ID, actor.ID, func(d *Device) error {
			d.AssigneeID = nil
			d.AssigneeCache = ""
			d.Status = domain.StatusAvailable
			d.UAFSigned = false
			d.ReasonForUpdate = fmt.Sprintf("Device cleared by %s on %s", employeeName, now.Format("2006-01-02"))
			return nil
		}); err != nil {
			return err
		}
		s.notifier.Notify(ctx, tx, agreement.EmployeeID,
			fmt.Sprintf("Your device clearance for %s has been completed.", device.SerialNumber),
			EntityAgreement, agreementID)
		return nil
	})
	if err != nil {
		return AssignmentAgreement{}, res, err
	}
	return cleared, res, nil
}

func employeeDisplay(view TransactionView, employeeID string) string {
	if emp, ok := view.FindEmployee(employeeID); ok {
		return emp.DisplayName()
	}
	return "Unknown"
}
