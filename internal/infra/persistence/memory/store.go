package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventorycore/pkg/domain"
)

// Type aliases keep call sites terse while the canonical definitions live in
// pkg/domain.
type (
	Device              = domain.Device
	StagedEdit          = domain.StagedEdit
	AssignmentAgreement = domain.AssignmentAgreement
	Notification        = domain.Notification
	Employee            = domain.Employee
	Centre              = domain.Centre
	Department          = domain.Department
	User                = domain.User
	DeviceSnapshot      = domain.Snapshot
	Change              = domain.Change
	Result              = domain.Result
	RulesEngine         = domain.RulesEngine
	Transaction         = domain.Transaction
	TransactionView     = domain.TransactionView
)

type memoryState struct {
	devices       map[string]Device
	stagedEdits   map[string]StagedEdit
	agreements    map[string]AssignmentAgreement
	notifications map[string]Notification
	employees     map[string]Employee
	centres       map[string]Centre
	departments   map[string]Department
	users         map[string]User
	// snapshots is keyed by device id; each slice is append-only and kept
	// ascending by Timestamp then insertion order.
	snapshots map[string][]DeviceSnapshot
}

func newMemoryState() memoryState {
	return memoryState{
		devices:       map[string]Device{},
		stagedEdits:   map[string]StagedEdit{},
		agreements:    map[string]AssignmentAgreement{},
		notifications: map[string]Notification{},
		employees:     map[string]Employee{},
		centres:       map[string]Centre{},
		departments:   map[string]Department{},
		users:         map[string]User{},
		snapshots:     map[string][]DeviceSnapshot{},
	}
}

func (m memoryState) clone() memoryState {
	out := newMemoryState()
	for id, d := range m.devices {
		out.devices[id] = cloneDevice(d)
	}
	for id, e := range m.stagedEdits {
		out.stagedEdits[id] = cloneStagedEdit(e)
	}
	for id, a := range m.agreements {
		out.agreements[id] = cloneAgreement(a)
	}
	for id, n := range m.notifications {
		out.notifications[id] = cloneNotification(n)
	}
	for id, e := range m.employees {
		out.employees[id] = cloneEmployee(e)
	}
	for id, c := range m.centres {
		out.centres[id] = c
	}
	for id, d := range m.departments {
		out.departments[id] = d
	}
	for id, u := range m.users {
		out.users[id] = cloneUser(u)
	}
	for deviceID, snaps := range m.snapshots {
		cp := make([]DeviceSnapshot, len(snaps))
		for i, s := range snaps {
			cp[i] = cloneSnapshot(s)
		}
		out.snapshots[deviceID] = cp
	}
	return out
}

// State is a full copy of the store contents used by durable backends to
// persist and restore the in-memory image.
type State struct {
	Devices       []Device                    `json:"devices"`
	StagedEdits   []StagedEdit                `json:"staged_edits"`
	Agreements    []AssignmentAgreement       `json:"agreements"`
	Notifications []Notification              `json:"notifications"`
	Employees     []Employee                  `json:"employees"`
	Centres       []Centre                    `json:"centres"`
	Departments   []Department                `json:"departments"`
	Users         []User                      `json:"users"`
	Snapshots     map[string][]DeviceSnapshot `json:"snapshots"`
}

func stateFromMemoryState(m memoryState) State {
	out := State{Snapshots: map[string][]DeviceSnapshot{}}
	for _, d := range m.devices {
		out.Devices = append(out.Devices, cloneDevice(d))
	}
	for _, e := range m.stagedEdits {
		out.StagedEdits = append(out.StagedEdits, cloneStagedEdit(e))
	}
	for _, a := range m.agreements {
		out.Agreements = append(out.Agreements, cloneAgreement(a))
	}
	for _, n := range m.notifications {
		out.Notifications = append(out.Notifications, cloneNotification(n))
	}
	for _, e := range m.employees {
		out.Employees = append(out.Employees, cloneEmployee(e))
	}
	for _, c := range m.centres {
		out.Centres = append(out.Centres, c)
	}
	for _, d := range m.departments {
		out.Departments = append(out.Departments, d)
	}
	for _, u := range m.users {
		out.Users = append(out.Users, cloneUser(u))
	}
	for deviceID, snaps := range m.snapshots {
		cp := make([]DeviceSnapshot, len(snaps))
		for i, s := range snaps {
			cp[i] = cloneSnapshot(s)
		}
		out.Snapshots[deviceID] = cp
	}
	sort.Slice(out.Devices, func(i, j int) bool { return out.Devices[i].ID < out.Devices[j].ID })
	sort.Slice(out.StagedEdits, func(i, j int) bool { return out.StagedEdits[i].ID < out.StagedEdits[j].ID })
	sort.Slice(out.Agreements, func(i, j int) bool { return out.Agreements[i].ID < out.Agreements[j].ID })
	sort.Slice(out.Notifications, func(i, j int) bool { return out.Notifications[i].ID < out.Notifications[j].ID })
	sort.Slice(out.Employees, func(i, j int) bool { return out.Employees[i].ID < out.Employees[j].ID })
	sort.Slice(out.Centres, func(i, j int) bool { return out.Centres[i].ID < out.Centres[j].ID })
	sort.Slice(out.Departments, func(i, j int) bool { return out.Departments[i].ID < out.Departments[j].ID })
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].ID < out.Users[j].ID })
	return out
}

func memoryStateFromState(state State) memoryState {
	out := newMemoryState()
	for _, d := range state.Devices {
		out.devices[d.ID] = cloneDevice(d)
	}
	for _, e := range state.StagedEdits {
		out.stagedEdits[e.ID] = cloneStagedEdit(e)
	}
	for _, a := range state.Agreements {
		out.agreements[a.ID] = cloneAgreement(a)
	}
	for _, n := range state.Notifications {
		out.notifications[n.ID] = cloneNotification(n)
	}
	for _, e := range state.Employees {
		out.employees[e.ID] = cloneEmployee(e)
	}
	for _, c := range state.Centres {
		out.centres[c.ID] = c
	}
	for _, d := range state.Departments {
		out.departments[d.ID] = d
	}
	for _, u := range state.Users {
		out.users[u.ID] = cloneUser(u)
	}
	for deviceID, snaps := range state.Snapshots {
		cp := make([]DeviceSnapshot, len(snaps))
		for i, s := range snaps {
			cp[i] = cloneSnapshot(s)
		}
		sortSnapshots(cp)
		out.snapshots[deviceID] = cp
	}
	return out
}

func sortSnapshots(snaps []DeviceSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDevice(d Device) Device {
	d.CentreID = cloneStringPtr(d.CentreID)
	d.DepartmentID = cloneStringPtr(d.DepartmentID)
	d.AssigneeID = cloneStringPtr(d.AssigneeID)
	d.Date = cloneTimePtr(d.Date)
	d.AddedByID = cloneStringPtr(d.AddedByID)
	d.ApprovedByID = cloneStringPtr(d.ApprovedByID)
	return d
}

func cloneStagedEdit(e StagedEdit) StagedEdit {
	f := &e.Fields
	f.CentreID = cloneStringPtr(f.CentreID)
	f.DepartmentID = cloneStringPtr(f.DepartmentID)
	f.Name = cloneStringPtr(f.Name)
	f.Model = cloneStringPtr(f.Model)
	f.Processor = cloneStringPtr(f.Processor)
	f.RAMGB = cloneStringPtr(f.RAMGB)
	f.HDDGB = cloneStringPtr(f.HDDGB)
	f.SerialNumber = cloneStringPtr(f.SerialNumber)
	f.AssigneeID = cloneStringPtr(f.AssigneeID)
	f.Condition = cloneStringPtr(f.Condition)
	f.Status = cloneStringPtr(f.Status)
	f.Date = cloneTimePtr(f.Date)
	f.ReasonForUpdate = cloneStringPtr(f.ReasonForUpdate)
	if f.Category != nil {
		c := *f.Category
		f.Category = &c
	}
	return e
}

func cloneAgreement(a AssignmentAgreement) AssignmentAgreement {
	a.IssuanceDate = cloneTimePtr(a.IssuanceDate)
	a.IssuanceITUserID = cloneStringPtr(a.IssuanceITUserID)
	a.ClearanceDate = cloneTimePtr(a.ClearanceDate)
	a.ClearanceITUserID = cloneStringPtr(a.ClearanceITUserID)
	return a
}

func cloneNotification(n Notification) Notification {
	n.RespondedByID = cloneStringPtr(n.RespondedByID)
	return n
}

func cloneEmployee(e Employee) Employee {
	e.DepartmentID = cloneStringPtr(e.DepartmentID)
	e.CentreID = cloneStringPtr(e.CentreID)
	return e
}

func cloneUser(u User) User {
	u.CentreID = cloneStringPtr(u.CentreID)
	return u
}

func cloneSnapshot(s DeviceSnapshot) DeviceSnapshot {
	s.Device = cloneDevice(s.Device)
	return s
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided image.
func (s *Store) ImportState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromState(state)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the store clock. Intended for deterministic tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListDevices returns all devices within the snapshot.
func (v transactionView) ListDevices() []Device {
	out := make([]Device, 0, len(v.state.devices))
	for _, d := range v.state.devices {
		out = append(out, cloneDevice(d))
	}
	return out
}

// ListStagedEdits returns all staged edits within the snapshot.
func (v transactionView) ListStagedEdits() []StagedEdit {
	out := make([]StagedEdit, 0, len(v.state.stagedEdits))
	for _, e := range v.state.stagedEdits {
		out = append(out, cloneStagedEdit(e))
	}
	return out
}

// ListAgreements returns all assignment agreements within the snapshot.
func (v transactionView) ListAgreements() []AssignmentAgreement {
	out := make([]AssignmentAgreement, 0, len(v.state.agreements))
	for _, a := range v.state.agreements {
		out = append(out, cloneAgreement(a))
	}
	return out
}

// ListNotifications returns all notifications within the snapshot.
func (v transactionView) ListNotifications() []Notification {
	out := make([]Notification, 0, len(v.state.notifications))
	for _, n := range v.state.notifications {
		out = append(out, cloneNotification(n))
	}
	return out
}

// ListUsers returns all users within the snapshot.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, cloneUser(u))
	}
	return out
}

// ListEmployees returns all employees within the snapshot.
func (v transactionView) ListEmployees() []Employee {
	out := make([]Employee, 0, len(v.state.employees))
	for _, e := range v.state.employees {
		out = append(out, cloneEmployee(e))
	}
	return out
}

// FindDevice retrieves a device by ID from the snapshot.
func (v transactionView) FindDevice(id string) (Device, bool) {
	d, ok := v.state.devices[id]
	if !ok {
		return Device{}, false
	}
	return cloneDevice(d), true
}

// FindStagedEdit retrieves a staged edit by ID from the snapshot.
func (v transactionView) FindStagedEdit(id string) (StagedEdit, bool) {
	e, ok := v.state.stagedEdits[id]
	if !ok {
		return StagedEdit{}, false
	}
	return cloneStagedEdit(e), true
}

// FindAgreement retrieves an assignment agreement by ID from the snapshot.
func (v transactionView) FindAgreement(id string) (AssignmentAgreement, bool) {
	a, ok := v.state.agreements[id]
	if !ok {
		return AssignmentAgreement{}, false
	}
	return cloneAgreement(a), true
}

// FindEmployee retrieves an employee by ID from the snapshot.
func (v transactionView) FindEmployee(id string) (Employee, bool) {
	e, ok := v.state.employees[id]
	if !ok {
		return Employee{}, false
	}
	return cloneEmployee(e), true
}

// FindUser retrieves a user by ID from the snapshot.
func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// FindCentre retrieves a centre by ID from the snapshot.
func (v transactionView) FindCentre(id string) (Centre, bool) {
	c, ok := v.state.centres[id]
	return c, ok
}

// FindDepartment retrieves a department by ID from the snapshot.
func (v transactionView) FindDepartment(id string) (Department, bool) {
	d, ok := v.state.departments[id]
	return d, ok
}

// StagedEditForDevice returns the pending staged edit for a device, if any.
func (v transactionView) StagedEditForDevice(deviceID string) (StagedEdit, bool) {
	for _, e := range v.state.stagedEdits {
		if e.DeviceID == deviceID {
			return cloneStagedEdit(e), true
		}
	}
	return StagedEdit{}, false
}

// ActiveAgreementForDevice returns the device's non-archived agreement, if any.
func (v transactionView) ActiveAgreementForDevice(deviceID string) (AssignmentAgreement, bool) {
	for _, a := range v.state.agreements {
		if a.DeviceID == deviceID && !a.IsArchived {
			return cloneAgreement(a), true
		}
	}
	return AssignmentAgreement{}, false
}

// NotificationsForOrigin returns notifications linked to the given origin.
func (v transactionView) NotificationsForOrigin(kind domain.EntityType, originID string) []Notification {
	var out []Notification
	for _, n := range v.state.notifications {
		if n.OriginKind == kind && n.OriginID == originID {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListSnapshots returns a device's snapshot log ascending by capture time.
func (v transactionView) ListSnapshots(deviceID string) []DeviceSnapshot {
	snaps := v.state.snapshots[deviceID]
	out := make([]DeviceSnapshot, len(snaps))
	for i, s := range snaps {
		out[i] = cloneSnapshot(s)
	}
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// appendSnapshot writes the append-only history entry for a committed device
// mutation. It shares the transaction copy, so a rejected commit discards the
// snapshot along with the mutation.
func (tx *transaction) appendSnapshot(kind domain.SnapshotKind, actorID string, d Device) {
	snap := DeviceSnapshot{
		ID:        tx.store.newID(),
		DeviceID:  d.ID,
		Kind:      kind,
		ActorID:   actorID,
		Timestamp: tx.now,
		Device:    cloneDevice(d),
	}
	tx.state.snapshots[d.ID] = append(tx.state.snapshots[d.ID], snap)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindDevice exposes device lookup within the transaction scope.
func (tx *transaction) FindDevice(id string) (Device, bool) {
	d, ok := tx.state.devices[id]
	if !ok {
		return Device{}, false
	}
	return cloneDevice(d), true
}

// FindStagedEdit exposes staged edit lookup within the transaction scope.
func (tx *transaction) FindStagedEdit(id string) (StagedEdit, bool) {
	e, ok := tx.state.stagedEdits[id]
	if !ok {
		return StagedEdit{}, false
	}
	return cloneStagedEdit(e), true
}

// FindAgreement exposes agreement lookup within the transaction scope.
func (tx *transaction) FindAgreement(id string) (AssignmentAgreement, bool) {
	a, ok := tx.state.agreements[id]
	if !ok {
		return AssignmentAgreement{}, false
	}
	return cloneAgreement(a), true
}

// FindEmployee exposes employee lookup within the transaction scope.
func (tx *transaction) FindEmployee(id string) (Employee, bool) {
	e, ok := tx.state.employees[id]
	if !ok {
		return Employee{}, false
	}
	return cloneEmployee(e), true
}

// FindUser exposes user lookup within the transaction scope.
func (tx *transaction) FindUser(id string) (User, bool) {
	u, ok := tx.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// CreateDevice stores a new device and appends its creation snapshot.
func (tx *transaction) CreateDevice(d Device, actorID string) (Device, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.devices[d.ID]; exists {
		return Device{}, fmt.Errorf("device %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.devices[d.ID] = cloneDevice(d)
	tx.appendSnapshot(domain.SnapshotCreated, actorID, d)
	tx.recordChange(Change{Entity: domain.EntityDevice, Action: domain.ActionCreate, After: cloneDevice(d)})
	return cloneDevice(d), nil
}

// UpdateDevice mutates a device using the provided mutator function and
// appends an update snapshot.
func (tx *transaction) UpdateDevice(id, actorID string, mutator func(*Device) error) (Device, error) {
	current, ok := tx.state.devices[id]
	if !ok {
		return Device{}, domain.ErrNotFound{Entity: domain.EntityDevice, ID: id}
	}
	before := cloneDevice(current)
	if err := mutator(&current); err != nil {
		return Device{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.devices[id] = cloneDevice(current)
	tx.appendSnapshot(domain.SnapshotUpdated, actorID, current)
	tx.recordChange(Change{Entity: domain.EntityDevice, Action: domain.ActionUpdate, Before: before, After: cloneDevice(current)})
	return cloneDevice(current), nil
}

// DeleteDevice removes a device, its staged edit, and appends a deletion
// snapshot. The snapshot log itself is retained.
func (tx *transaction) DeleteDevice(id, actorID string) error {
	current, ok := tx.state.devices[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityDevice, ID: id}
	}
	for editID, e := range tx.state.stagedEdits {
		if e.DeviceID == id {
			delete(tx.state.stagedEdits, editID)
		}
	}
	delete(tx.state.devices, id)
	tx.appendSnapshot(domain.SnapshotDeleted, actorID, current)
	tx.recordChange(Change{Entity: domain.EntityDevice, Action: domain.ActionDelete, Before: cloneDevice(current)})
	return nil
}

// CreateStagedEdit stores a new staged edit.
func (tx *transaction) CreateStagedEdit(e StagedEdit) (StagedEdit, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.stagedEdits[e.ID]; exists {
		return StagedEdit{}, fmt.Errorf("staged edit %q already exists", e.ID)
	}
	if _, ok := tx.state.devices[e.DeviceID]; !ok {
		return StagedEdit{}, domain.ErrNotFound{Entity: domain.EntityDevice, ID: e.DeviceID}
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.stagedEdits[e.ID] = cloneStagedEdit(e)
	tx.recordChange(Change{Entity: domain.EntityStagedEdit, Action: domain.ActionCreate, After: cloneStagedEdit(e)})
	return cloneStagedEdit(e), nil
}

// UpdateStagedEdit mutates an existing staged edit.
func (tx *transaction) UpdateStagedEdit(id string, mutator func(*StagedEdit) error) (StagedEdit, error) {
	current, ok := tx.state.stagedEdits[id]
	if !ok {
		return StagedEdit{}, domain.ErrNotFound{Entity: domain.EntityStagedEdit, ID: id}
	}
	before := cloneStagedEdit(current)
	if err := mutator(&current); err != nil {
		return StagedEdit{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.stagedEdits[id] = cloneStagedEdit(current)
	tx.recordChange(Change{Entity: domain.EntityStagedEdit, Action: domain.ActionUpdate, Before: before, After: cloneStagedEdit(current)})
	return cloneStagedEdit(current), nil
}

// DeleteStagedEdit removes a staged edit from state.
func (tx *transaction) DeleteStagedEdit(id string) error {
	current, ok := tx.state.stagedEdits[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityStagedEdit, ID: id}
	}
	delete(tx.state.stagedEdits, id)
	tx.recordChange(Change{Entity: domain.EntityStagedEdit, Action: domain.ActionDelete, Before: cloneStagedEdit(current)})
	return nil
}

// CreateAgreement stores a new assignment agreement.
func (tx *transaction) CreateAgreement(a AssignmentAgreement) (AssignmentAgreement, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.agreements[a.ID]; exists {
		return AssignmentAgreement{}, fmt.Errorf("agreement %q already exists", a.ID)
	}
	if _, ok := tx.state.devices[a.DeviceID]; !ok {
		return AssignmentAgreement{}, domain.ErrNotFound{Entity: domain.EntityDevice, ID: a.DeviceID}
	}
	if _, ok := tx.state.employees[a.EmployeeID]; !ok {
		return AssignmentAgreement{}, domain.ErrNotFound{Entity: domain.EntityEmployee, ID: a.EmployeeID}
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.agreements[a.ID] = cloneAgreement(a)
	tx.recordChange(Change{Entity: domain.EntityAgreement, Action: domain.ActionCreate, After: cloneAgreement(a)})
	return cloneAgreement(a), nil
}

// UpdateAgreement mutates an existing assignment agreement.
func (tx *transaction) UpdateAgreement(id string, mutator func(*AssignmentAgreement) error) (AssignmentAgreement, error) {
	current, ok := tx.state.agreements[id]
	if !ok {
		return AssignmentAgreement{}, domain.ErrNotFound{Entity: domain.EntityAgreement, ID: id}
	}
	before := cloneAgreement(current)
	if err := mutator(&current); err != nil {
		return AssignmentAgreement{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.agreements[id] = cloneAgreement(current)
	tx.recordChange(Change{Entity: domain.EntityAgreement, Action: domain.ActionUpdate, Before: before, After: cloneAgreement(current)})
	return cloneAgreement(current), nil
}

// CreateNotification stores a new notification.
func (tx *transaction) CreateNotification(n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = tx.store.newID()
	}
	if _, exists := tx.state.notifications[n.ID]; exists {
		return Notification{}, fmt.Errorf("notification %q already exists", n.ID)
	}
	n.CreatedAt = tx.now
	n.UpdatedAt = tx.now
	tx.state.notifications[n.ID] = cloneNotification(n)
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionCreate, After: cloneNotification(n)})
	return cloneNotification(n), nil
}

// UpdateNotification mutates an existing notification.
func (tx *transaction) UpdateNotification(id string, mutator func(*Notification) error) (Notification, error) {
	current, ok := tx.state.notifications[id]
	if !ok {
		return Notification{}, domain.ErrNotFound{Entity: domain.EntityNotification, ID: id}
	}
	before := cloneNotification(current)
	if err := mutator(&current); err != nil {
		return Notification{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.notifications[id] = cloneNotification(current)
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionUpdate, Before: before, After: cloneNotification(current)})
	return cloneNotification(current), nil
}

// CreateEmployee stores a new employee record.
func (tx *transaction) CreateEmployee(e Employee) (Employee, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.employees[e.ID]; exists {
		return Employee{}, fmt.Errorf("employee %q already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.employees[e.ID] = cloneEmployee(e)
	tx.recordChange(Change{Entity: domain.EntityEmployee, Action: domain.ActionCreate, After: cloneEmployee(e)})
	return cloneEmployee(e), nil
}

// UpdateEmployee mutates an existing employee record.
func (tx *transaction) UpdateEmployee(id string, mutator func(*Employee) error) (Employee, error) {
	current, ok := tx.state.employees[id]
	if !ok {
		return Employee{}, domain.ErrNotFound{Entity: domain.EntityEmployee, ID: id}
	}
	before := cloneEmployee(current)
	if err := mutator(&current); err != nil {
		return Employee{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.employees[id] = cloneEmployee(current)
	tx.recordChange(Change{Entity: domain.EntityEmployee, Action: domain.ActionUpdate, Before: before, After: cloneEmployee(current)})
	return cloneEmployee(current), nil
}

// CreateCentre stores a new centre record.
func (tx *transaction) CreateCentre(c Centre) (Centre, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.centres[c.ID]; exists {
		return Centre{}, fmt.Errorf("centre %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.centres[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCentre, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateDepartment stores a new department record.
func (tx *transaction) CreateDepartment(d Department) (Department, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.departments[d.ID]; exists {
		return Department{}, fmt.Errorf("department %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.departments[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityDepartment, Action: domain.ActionCreate, After: d})
	return d, nil
}

// CreateUser stores a new user record.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = tx.store.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = cloneUser(u)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// GetDevice retrieves a committed device by ID.
func (s *Store) GetDevice(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.devices[id]
	if !ok {
		return Device{}, false
	}
	return cloneDevice(d), true
}

// ListDevices returns all committed devices.
func (s *Store) ListDevices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, 0, len(s.state.devices))
	for _, d := range s.state.devices {
		out = append(out, cloneDevice(d))
	}
	return out
}

// GetStagedEdit retrieves a committed staged edit by ID.
func (s *Store) GetStagedEdit(id string) (StagedEdit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.stagedEdits[id]
	if !ok {
		return StagedEdit{}, false
	}
	return cloneStagedEdit(e), true
}

// ListStagedEdits returns all committed staged edits.
func (s *Store) ListStagedEdits() []StagedEdit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StagedEdit, 0, len(s.state.stagedEdits))
	for _, e := range s.state.stagedEdits {
		out = append(out, cloneStagedEdit(e))
	}
	return out
}

// GetAgreement retrieves a committed agreement by ID.
func (s *Store) GetAgreement(id string) (AssignmentAgreement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.agreements[id]
	if !ok {
		return AssignmentAgreement{}, false
	}
	return cloneAgreement(a), true
}

// ListAgreements returns all committed agreements.
func (s *Store) ListAgreements() []AssignmentAgreement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AssignmentAgreement, 0, len(s.state.agreements))
	for _, a := range s.state.agreements {
		out = append(out, cloneAgreement(a))
	}
	return out
}

// ListNotifications returns all committed notifications.
func (s *Store) ListNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notification, 0, len(s.state.notifications))
	for _, n := range s.state.notifications {
		out = append(out, cloneNotification(n))
	}
	return out
}

// ListEmployees returns all committed employees.
func (s *Store) ListEmployees() []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Employee, 0, len(s.state.employees))
	for _, e := range s.state.employees {
		out = append(out, cloneEmployee(e))
	}
	return out
}

// ListUsers returns all committed users.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.state.users))
	for _, u := range s.state.users {
		out = append(out, cloneUser(u))
	}
	return out
}

// ListSnapshots returns a device's committed snapshot log ascending by time.
func (s *Store) ListSnapshots(deviceID string) []DeviceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.state.snapshots[deviceID]
	out := make([]DeviceSnapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = cloneSnapshot(snap)
	}
	return out
}
