// Package domain defines the core persistent entities, value types, error
// taxonomy, and rule evaluation primitives used by inventorycore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, notification
// origins, and persistence buckets.
const (
	// EntityDevice identifies a canonical device record.
	EntityDevice EntityType = "device"
	// EntityStagedEdit identifies a proposed edit awaiting approval.
	EntityStagedEdit EntityType = "staged_edit"
	// EntityAgreement identifies an assignment agreement record.
	EntityAgreement EntityType = "assignment_agreement"
	// EntityNotification identifies a notification record.
	EntityNotification EntityType = "notification"
	// EntityEmployee identifies an employee (assignee) record.
	EntityEmployee EntityType = "employee"
	// EntityCentre identifies a centre record.
	EntityCentre EntityType = "centre"
	// EntityDepartment identifies a department record.
	EntityDepartment EntityType = "department"
	// EntityUser identifies a system user (actor) record.
	EntityUser EntityType = "user"
)

// Category enumerates the supported device classifications.
type Category string

// Canonical device categories carried over from the import workflow.
const (
	CategoryLaptop      Category = "laptop"
	CategorySystemUnit  Category = "system_unit"
	CategoryMonitor     Category = "monitor"
	CategoryTelevision  Category = "tv"
	CategoryNetworking  Category = "networking_devices"
	CategoryPrinter     Category = "printer"
	CategoryNComputing  Category = "n_computing"
	CategoryProjector   Category = "projector"
	CategoryGadget      Category = "gadget"
	CategoryAccessPoint Category = "access_point"
	CategoryPowerBackup Category = "power_backup_equipment"
	CategoryOther       Category = "other"
)

// Device status strings with workflow meaning. Status is free text elsewhere;
// these two values are written by the core itself.
const (
	StatusAvailable = "Available"
	StatusDisposed  = "Disposed"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is the canonical asset record and its current mutable state.
type Device struct {
	Base
	Category             Category   `json:"category"`
	CentreID             *string    `json:"centre_id"`
	DepartmentID         *string    `json:"department_id"`
	Name                 string     `json:"name"`
	Model                string     `json:"model"`
	Processor            string     `json:"processor"`
	RAMGB                string     `json:"ram_gb"`
	HDDGB                string     `json:"hdd_gb"`
	SerialNumber         string     `json:"serial_number"`
	AssigneeID           *string    `json:"assignee_id"`
	AssigneeCache        string     `json:"assignee_cache"`
	Condition            string     `json:"condition"`
	Status               string     `json:"status"`
	Date                 *time.Time `json:"date"`
	AddedByID            *string    `json:"added_by_id"`
	ApprovedByID         *string    `json:"approved_by_id"`
	IsApproved           bool       `json:"is_approved"`
	PendingClarification bool       `json:"pending_clarification"`
	ReasonForUpdate      string     `json:"reason_for_update"`
	IsDisposed           bool       `json:"is_disposed"`
	DisposalReason       string     `json:"disposal_reason"`
	UAFSigned            bool       `json:"uaf_signed"`
}

// DeviceFields is a changed-field set for a device: nil means "not proposed".
// Reference fields can be set but never cleared through a staged edit;
// clearing an assignee goes through the clearance workflow instead.
type DeviceFields struct {
	Category        *Category  `json:"category,omitempty"`
	CentreID        *string    `json:"centre_id,omitempty"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	Name            *string    `json:"name,omitempty"`
	Model           *string    `json:"model,omitempty"`
	Processor       *string    `json:"processor,omitempty"`
	RAMGB           *string    `json:"ram_gb,omitempty"`
	HDDGB           *string    `json:"hdd_gb,omitempty"`
	SerialNumber    *string    `json:"serial_number,omitempty"`
	AssigneeID      *string    `json:"assignee_id,omitempty"`
	Condition       *string    `json:"condition,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
	ReasonForUpdate *string    `json:"reason_for_update,omitempty"`
}

// IsZero reports whether no field is proposed.
func (f DeviceFields) IsZero() bool {
	return f.Category == nil && f.CentreID == nil && f.DepartmentID == nil &&
		f.Name == nil && f.Model == nil && f.Processor == nil &&
		f.RAMGB == nil && f.HDDGB == nil && f.SerialNumber == nil &&
		f.AssigneeID == nil && f.Condition == nil && f.Status == nil &&
		f.Date == nil && f.ReasonForUpdate == nil
}

// Apply copies every present field onto the device.
func (f DeviceFields) Apply(d *Device) {
	if f.Category != nil {
		d.Category = *f.Category
	}
	if f.CentreID != nil {
		v := *f.CentreID
		d.CentreID = &v
	}
	if f.DepartmentID != nil {
		v := *f.DepartmentID
		d.DepartmentID = &v
	}
	if f.Name != nil {
		d.Name = *f.Name
	}
	if f.Model != nil {
		d.Model = *f.Model
	}
	if f.Processor != nil {
		d.Processor = *f.Processor
	}
	if f.RAMGB != nil {
		d.RAMGB = *f.RAMGB
	}
	if f.HDDGB != nil {
		d.HDDGB = *f.HDDGB
	}
	if f.SerialNumber != nil {
		d.SerialNumber = *f.SerialNumber
	}
	if f.AssigneeID != nil {
		v := *f.AssigneeID
		d.AssigneeID = &v
	}
	if f.Condition != nil {
		d.Condition = *f.Condition
	}
	if f.Status != nil {
		d.Status = *f.Status
	}
	if f.Date != nil {
		v := *f.Date
		d.Date = &v
	}
	if f.ReasonForUpdate != nil {
		d.ReasonForUpdate = *f.ReasonForUpdate
	}
}

// StagedEdit is a proposed replacement set of device fields awaiting
// privileged approval. At most one outstanding staged edit exists per device;
// a newer proposal replaces the older one.
type StagedEdit struct {
	Base
	DeviceID             string       `json:"device_id"`
	Fields               DeviceFields `json:"fields"`
	Reason               string       `json:"reason"`
	ProposedByID         string       `json:"proposed_by_id"`
	PendingClarification bool         `json:"pending_clarification"`
}

// AgreementState is the derived lifecycle position of an assignment agreement.
type AgreementState string

// Agreement lifecycle states derived from the signature flags.
const (
	AgreementIssuancePending AgreementState = "issuance_pending"
	AgreementIssued          AgreementState = "issued"
	AgreementCleared         AgreementState = "cleared"
)

// AssignmentAgreement represents one issuance-to-clearance cycle binding a
// device to an employee. Signatures are stored as opaque encoded payloads
// (base64 PNG in the surrounding application).
type AssignmentAgreement struct {
	Base
	DeviceID   string `json:"device_id"`
	EmployeeID string `json:"employee_id"`

	IssuanceEmployeeSignature string     `json:"issuance_employee_signature"`
	IssuanceITSignature       string     `json:"issuance_it_signature"`
	IssuanceDate              *time.Time `json:"issuance_date"`
	IssuanceITUserID          *string    `json:"issuance_it_user_id"`
	EmployeeSignedIssuance    bool       `json:"employee_signed_issuance"`
	ITApprovedIssuance        bool       `json:"it_approved_issuance"`

	ClearanceEmployeeSignature string     `json:"clearance_employee_signature"`
	ClearanceITSignature       string     `json:"clearance_it_signature"`
	ClearanceDate              *time.Time `json:"clearance_date"`
	ClearanceITUserID          *string    `json:"clearance_it_user_id"`
	ClearanceRemarks           string     `json:"clearance_remarks"`
	EmployeeSignedClearance    bool       `json:"employee_signed_clearance"`
	ITApprovedClearance        bool       `json:"it_approved_clearance"`

	IsArchived bool `json:"is_archived"`
}

// State derives the agreement's lifecycle position from its signature flags.
func (a AssignmentAgreement) State() AgreementState {
	switch {
	case a.IsArchived || a.EmployeeSignedClearance:
		return AgreementCleared
	case a.EmployeeSignedIssuance:
		return AgreementIssued
	default:
		return AgreementIssuancePending
	}
}

// SnapshotKind classifies the save that produced a snapshot.
type SnapshotKind string

// Snapshot kinds.
const (
	SnapshotCreated SnapshotKind = "created"
	SnapshotUpdated SnapshotKind = "updated"
	SnapshotDeleted SnapshotKind = "deleted"
)

// Snapshot is an immutable point-in-time copy of a device's fields plus the
// actor and timestamp of the save that produced it. Snapshots are appended by
// the store on every committed device mutation, are totally ordered per
// device by commit time, and form the sole input to history reconstruction.
type Snapshot struct {
	ID        string       `json:"id"`
	DeviceID  string       `json:"device_id"`
	Kind      SnapshotKind `json:"kind"`
	ActorID   string       `json:"actor_id"`
	Timestamp time.Time    `json:"timestamp"`
	Device    Device       `json:"device"`
}

// Notification is an event record addressed to one actor.
type Notification struct {
	Base
	UserID        string     `json:"user_id"`
	Message       string     `json:"message"`
	OriginKind    EntityType `json:"origin_kind"`
	OriginID      string     `json:"origin_id"`
	IsRead        bool       `json:"is_read"`
	RespondedByID *string    `json:"responded_by_id"`
}

// Employee is a lightweight person record used for device assignees.
type Employee struct {
	Base
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	StaffNumber  string  `json:"staff_number"`
	Designation  string  `json:"designation"`
	DepartmentID *string `json:"department_id"`
	CentreID     *string `json:"centre_id"`
	Active       bool    `json:"active"`
}

// DisplayName renders the employee the way history views label assignees.
func (e Employee) DisplayName() string {
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	if e.StaffNumber != "" {
		return name + " (" + e.StaffNumber + ")"
	}
	return name
}

// Centre is a physical site devices belong to.
type Centre struct {
	Base
	Name string `json:"name"`
	Code string `json:"code"`
}

// Department groups devices and employees within a centre.
type Department struct {
	Base
	Name string `json:"name"`
	Code string `json:"code"`
}

// User is a system actor. Privilege flags mirror the surrounding
// application's role model.
type User struct {
	Base
	Username          string  `json:"username"`
	FullName          string  `json:"full_name"`
	CentreID          *string `json:"centre_id"`
	IsTrainer         bool    `json:"is_trainer"`
	IsSuperuser       bool    `json:"is_superuser"`
	IsITManager       bool    `json:"is_it_manager"`
	IsSeniorITOfficer bool    `json:"is_senior_it_officer"`
}

// Elevated reports whether the user may approve, reject, and dispose devices
// and edit them without staging.
func (u User) Elevated() bool {
	return u.IsSuperuser && !u.IsTrainer
}

// CanDelete reports whether the user may hard-delete device records.
func (u User) CanDelete() bool {
	return u.IsITManager || u.IsSeniorITOfficer
}

// DisplayName returns the user's full name, falling back to the username.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Username
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
