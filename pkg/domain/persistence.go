package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Device mutations take the acting
// user's id so the store can tag the snapshot it appends on commit.
type Transaction interface {
	Snapshot() TransactionView
	CreateDevice(d Device, actorID string) (Device, error)
	UpdateDevice(id, actorID string, mutator func(*Device) error) (Device, error)
	DeleteDevice(id, actorID string) error
	CreateStagedEdit(StagedEdit) (StagedEdit, error)
	UpdateStagedEdit(id string, mutator func(*StagedEdit) error) (StagedEdit, error)
	DeleteStagedEdit(id string) error
	CreateAgreement(AssignmentAgreement) (AssignmentAgreement, error)
	UpdateAgreement(id string, mutator func(*AssignmentAgreement) error) (AssignmentAgreement, error)
	CreateNotification(Notification) (Notification, error)
	UpdateNotification(id string, mutator func(*Notification) error) (Notification, error)
	CreateEmployee(Employee) (Employee, error)
	UpdateEmployee(id string, mutator func(*Employee) error) (Employee, error)
	CreateCentre(Centre) (Centre, error)
	CreateDepartment(Department) (Department, error)
	CreateUser(User) (User, error)
	FindDevice(id string) (Device, bool)
	FindStagedEdit(id string) (StagedEdit, bool)
	FindAgreement(id string) (AssignmentAgreement, bool)
	FindEmployee(id string) (Employee, bool)
	FindUser(id string) (User, bool)
}

// TransactionView provides read-only access to transactional state for rules
// and services. Listing methods return defensive copies.
type TransactionView interface {
	RuleView
	FindCentre(id string) (Centre, bool)
	FindDepartment(id string) (Department, bool)
	ListUsers() []User
	ListEmployees() []Employee
	StagedEditForDevice(deviceID string) (StagedEdit, bool)
	ActiveAgreementForDevice(deviceID string) (AssignmentAgreement, bool)
	NotificationsForOrigin(kind EntityType, originID string) []Notification
}

// PersistentStore is a minimal abstraction over durable backends. Snapshot
// appends and the enclosing mutation commit atomically: a rejected
// transaction leaves neither behind.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetDevice(id string) (Device, bool)
	ListDevices() []Device
	GetStagedEdit(id string) (StagedEdit, bool)
	ListStagedEdits() []StagedEdit
	GetAgreement(id string) (AssignmentAgreement, bool)
	ListAgreements() []AssignmentAgreement
	ListNotifications() []Notification
	ListEmployees() []Employee
	ListUsers() []User
	ListSnapshots(deviceID string) []Snapshot
}
