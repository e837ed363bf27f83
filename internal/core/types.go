package core

import "inventorycore/pkg/domain"

type (
	EntityType          = domain.EntityType
	Severity            = domain.Severity
	Base                = domain.Base
	Device              = domain.Device
	DeviceFields        = domain.DeviceFields
	StagedEdit          = domain.StagedEdit
	AssignmentAgreement = domain.AssignmentAgreement
	Notification        = domain.Notification
	Employee            = domain.Employee
	Centre              = domain.Centre
	Department          = domain.Department
	User                = domain.User
	DeviceSnapshot      = domain.Snapshot
	Change              = domain.Change
	Action              = domain.Action
	Violation           = domain.Violation
	Result              = domain.Result
	RuleViolationError  = domain.RuleViolationError
	Rule                = domain.Rule
	RulesEngine         = domain.RulesEngine
	Transaction         = domain.Transaction
	TransactionView     = domain.TransactionView
	PersistentStore     = domain.PersistentStore
	ErrNotFound         = domain.ErrNotFound
)

const (
	EntityDevice       = domain.EntityDevice
	EntityStagedEdit   = domain.EntityStagedEdit
	EntityAgreement    = domain.EntityAgreement
	EntityNotification = domain.EntityNotification
	EntityEmployee     = domain.EntityEmployee
	EntityCentre       = domain.EntityCentre
	EntityDepartment   = domain.EntityDepartment
	EntityUser         = domain.EntityUser
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
