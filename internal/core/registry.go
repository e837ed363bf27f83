package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inventorycore/pkg/domain"
)

// Service exposes the device lifecycle workflow over a persistent store.
// Every operation runs in a single transaction and fails atomically.
type Service struct {
	store       PersistentStore
	notifier    Sink
	metrics     MetricsRecorder
	log         zerolog.Logger
	burstWindow time.Duration
	nowFn       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier overrides the notification sink.
func WithNotifier(sink Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.notifier = sink
		}
	}
}

// WithMetrics installs an operation metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithBurstWindow overrides the change-log grouping window used by
// DeviceHistory.
func WithBurstWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.burstWindow = window
		}
	}
}

// WithNowFunc overrides the service clock. Intended for deterministic tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewService constructs a workflow service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		log:         zerolog.Nop(),
		metrics:     NoopMetricsRecorder{},
		burstWindow: 0,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewRouter(s.log)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
}

func findDevice(view TransactionView, id string) (Device, error) {
	d, ok := view.FindDevice(id)
	if !ok {
		return Device{}, ErrNotFound{Entity: EntityDevice, ID: id}
	}
	return d, nil
}

// CreateDevice registers a new device. Elevated actors create approved
// records; anyone else creates an unapproved record that admins are asked to
// review.
func (s *Service) CreateDevice(ctx context.Context, actor User, device Device) (created Device, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_device", start, err) }(s.nowFn())

	device.SerialNumber = strings.TrimSpace(device.SerialNumber)
	if device.SerialNumber == "" {
		return Device{}, Result{}, domain.Errorf(domain.KindValidation, EntityDevice, "",
			"serial number is required")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := checkSerialConflict(tx.Snapshot(), device.SerialNumber, ""); err != nil {
			return err
		}
		device.AddedByID = &actor.ID
		if device.Status == "" {
			device.Status = domain.StatusAvailable
		}
		if actor.Elevated() {
			device.IsApproved = true
			device.ApprovedByID = &actor.ID
		} else {
			device.IsApproved = false
			device.ApprovedByID = nil
		}
		var err error
		created, err = tx.CreateDevice(device, actor.ID)
		if err != nil {
			return err
		}
		if !created.IsApproved {
			s.notifyAdmins(ctx, tx, actor,
				fmt.Sprintf("Import request for device %s by %s awaiting approval.", created.SerialNumber, actor.DisplayName()),
				EntityDevice, created.ID)
		}
		return nil
	})
	if err != nil {
		return Device{}, res, err
	}
	return created, res, nil
}

// UpdateDevice applies or stages an edit depending on the actor's privilege.
// Elevated actors mutate the device directly; everyone else gets a staged
// edit that waits for approval.
func (s *Service) UpdateDevice(ctx context.Context, actor User, id string, fields DeviceFields, reason string) (updated Device, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "update_device", start, err) }(s.nowFn())

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), id)
		if err != nil {
			return err
		}
		if err := checkAssigneeChange(fields, device); err != nil {
			return err
		}
		fields = trimNoopFields(fields, device)
		if fields.IsZero() {
			return domain.Errorf(domain.KindValidation, EntityDevice, id, "no changes detected")
		}
		if fields.SerialNumber != nil {
			if err := checkSerialConflict(tx.Snapshot(), *fields.SerialNumber, id); err != nil {
				return err
			}
		}

		if !actor.Elevated() {
			if _, err := s.stageEdit(ctx, tx, actor, device, fields, reason); err != nil {
				return err
			}
			updated, err = findDevice(tx.Snapshot(), id)
			return err
		}

		hadAssignee := device.AssigneeID != nil
		updated, err = tx.UpdateDevice(id, actor.ID, func(d *Device) error {
			fields.Apply(d)
			if strings.TrimSpace(reason) != "" {
				d.ReasonForUpdate = reason
			}
			if actor.IsSuperuser {
				d.IsApproved = true
				d.ApprovedByID = &actor.ID
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !hadAssignee && updated.AssigneeID != nil {
			s.notifier.Notify(ctx, tx, *updated.AssigneeID,
				fmt.Sprintf("Device %s has been assigned to you.", updated.SerialNumber),
				EntityDevice, updated.ID)
		}
		return nil
	})
	if err != nil {
		return Device{}, res, err
	}
	return updated, res, nil
}

// Approve finalises a pending device or its outstanding staged edit. The
// staged edit, when present, is applied in the same transaction, so the
// device read back afterwards reflects every proposed value.
func (s *Service) Approve(ctx context.Context, actor User, id string) (approved Device, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "approve_device", start, err) }(s.nowFn())

	if !actor.Elevated() {
		return Device{}, Result{}, domain.Errorf(domain.KindPermissionDenied, EntityDevice, id,
			"only elevated users may approve devices")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), id)
		if err != nil {
			return err
		}
		if device.IsDisposed {
			return domain.Errorf(domain.KindInvalidState, EntityDevice, id,
				"cannot approve a disposed device")
		}

		if edit, ok := tx.Snapshot().StagedEditForDevice(id); ok {
			oldAssignee, newAssignee, err := s.applyStagedEdit(tx, actor, device, edit, s.nowFn())
			if err != nil {
				return err
			}
			if err := markAdminNotificationsResponded(tx, actor, EntityStagedEdit, edit.ID); err != nil {
				return err
			}
			approved, err = findDevice(tx.Snapshot(), id)
			if err != nil {
				return err
			}
			s.notifier.Notify(ctx, tx, edit.ProposedByID,
				fmt.Sprintf("Your update for device %s was approved.", approved.SerialNumber),
				EntityStagedEdit, edit.ID)
			s.fanOutAssignmentChange(ctx, tx, approved, oldAssignee, newAssignee)
			return nil
		}

		approved, err = tx.UpdateDevice(id, actor.ID, func(d *Device) error {
			d.IsApproved = true
			d.ApprovedByID = &actor.ID
			d.PendingClarification = false
			return nil
		})
		if err != nil {
			return err
		}
		return markAdminNotificationsResponded(tx, actor, EntityDevice, id)
	})
	if err != nil {
		return Device{}, res, err
	}
	return approved, res, nil
}

func (s *Service) fanOutAssignmentChange(ctx context.Context, tx Transaction, device Device, oldAssignee, newAssignee *string) {
	changed := (oldAssignee == nil) != (newAssignee == nil) ||
		(oldAssignee != nil && newAssignee != nil && *oldAssignee != *newAssignee)
	if !changed {
		return
	}
	if oldAssignee != nil {
		s.notifier.Notify(ctx, tx, *oldAssignee,
			fmt.Sprintf("Device %s has been cleared from you.", device.SerialNumber),
			EntityDevice, device.ID)
	}
	if newAssignee != nil {
		s.notifier.Notify(ctx, tx, *newAssignee,
			fmt.Sprintf("Device %s has been assigned to you.", device.SerialNumber),
			EntityDevice, device.ID)
	}
}

// Reject sends a pending proposal back for clarification. The outstanding
// staged edit is flagged when one exists, otherwise the device itself.
// Rejection is idempotent and notifies the proposer exactly once.
func (s *Service) Reject(ctx context.Context, actor User, id string) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "reject_device", start, err) }(s.nowFn())

	if !actor.Elevated() {
		return Result{}, domain.Errorf(domain.KindPermissionDenied, EntityDevice, id,
			"only elevated users may reject devices")
	}
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), id)
		if err != nil {
			return err
		}

		if edit, ok := tx.Snapshot().StagedEditForDevice(id); ok {
			if _, err := tx.UpdateStagedEdit(edit.ID, func(e *StagedEdit) error {
				e.PendingClarification = true
				return nil
			}); err != nil {
				return err
			}
			s.notifyOnce(ctx, tx, edit.ProposedByID,
				fmt.Sprintf("Your update for device %s was rejected. Please provide clarification.", device.SerialNumber),
				EntityStagedEdit, edit.ID)
			return markAdminNotificationsResponded(tx, actor, EntityStagedEdit, edit.ID)
		}

		if _, err := tx.UpdateDevice(id, actor.ID, func(d *Device) error {
			d.PendingClarification = true
			return nil
		}); err != nil {
			return err
		}
		if device.AddedByID != nil {
			s.notifyOnce(ctx, tx, *device.AddedByID,
				fmt.Sprintf("Your import request for device %s was rejected. Please provide clarification.", device.SerialNumber),
				EntityDevice, id)
		}
		return markAdminNotificationsResponded(tx, actor, EntityDevice, id)
	})
}

// Dispose retires a device permanently. A disposal reason is mandatory and a
// disposed device cannot be disposed again.
func (s *Service) Dispose(ctx context.Context, actor User, id, reason string) (disposed Device, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "dispose_device", start, err) }(s.nowFn())

	if !actor.Elevated() {
		return Device{}, Result{}, domain.Errorf(domain.KindPermissionDenied, EntityDevice, id,
			"only elevated users may dispose devices")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Device{}, Result{}, domain.Errorf(domain.KindValidation, EntityDevice, id,
			"disposal reason is required")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), id)
		if err != nil {
			return err
		}
		if device.IsDisposed {
			return domain.Errorf(domain.KindInvalidState, EntityDevice, id,
				"device is already disposed")
		}
		disposed, err = tx.UpdateDevice(id, actor.ID, func(d *Device) error {
			d.IsDisposed = true
			d.Status = domain.StatusDisposed
			d.DisposalReason = reason
			d.ReasonForUpdate = reason
			return nil
		})
		return err
	})
	if err != nil {
		return Device{}, res, err
	}
	return disposed, res, nil
}

// ApproveAll approves a batch best-effort: each device gets its own
// transaction, failures are collected per item, and committed approvals are
// never rolled back.
func (s *Service) ApproveAll(ctx context.Context, actor User, ids []string) (approved int, failures map[string]error) {
	failures = make(map[string]error)
	for _, id := range ids {
		if _, _, err := s.Approve(ctx, actor, id); err != nil {
			failures[id] = err
			s.log.Warn().Err(err).Str("device", id).Msg("batch approval item failed")
			continue
		}
		approved++
	}
	return approved, failures
}

// ClearAssignee releases the device from its current assignee: the active
// agreement is archived, then the device returns to the available pool. Both
// happen in one transaction with the archive ordered first.
func (s *Service) ClearAssignee(ctx context.Context, actor User, id, remarks string) (cleared Device, res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "clear_assignee", start, err) }(s.nowFn())

	if strings.TrimSpace(remarks) == "" {
		remarks = "Device cleared"
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		device, err := findDevice(tx.Snapshot(), id)
		if err != nil {
			return err
		}
		previous := device.AssigneeID

		if agreement, ok := tx.Snapshot().ActiveAgreementForDevice(id); ok {
			now := s.nowFn()
			if _, err := tx.UpdateAgreement(agreement.ID, func(a *AssignmentAgreement) error {
				a.IsArchived = true
				a.ClearanceRemarks = remarks
				if a.ClearanceDate == nil {
					a.ClearanceDate = &now
				}
				return nil
			}); err != nil {
				return err
			}
		}

		cleared, err = tx.UpdateDevice(id, actor.ID, func(d *Device) error {
			d.AssigneeID = nil
			d.AssigneeCache = ""
			d.Status = domain.StatusAvailable
			d.UAFSigned = false
			d.ReasonForUpdate = fmt.Sprintf("Cleared by %s on %s", actor.Username, s.nowFn().Format("2006-01-02"))
			return nil
		})
		if err != nil {
			return err
		}
		if previous != nil {
			s.notifier.Notify(ctx, tx, *previous,
				fmt.Sprintf("Device %s has been cleared from you.", cleared.SerialNumber),
				EntityDevice, id)
		}
		return nil
	})
	if err != nil {
		return Device{}, res, err
	}
	return cleared, res, nil
}

// DeleteDevice removes a device record outright. Reserved for IT managers
// and senior IT officers; the deletion still leaves a final snapshot behind.
func (s *Service) DeleteDevice(ctx context.Context, actor User, id string) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_device", start, err) }(s.nowFn())

	if !actor.CanDelete() {
		return Result{}, domain.Errorf(domain.KindPermissionDenied, EntityDevice, id,
			"only IT managers or senior IT officers may delete devices")
	}
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteDevice(id, actor.ID)
	})
}
