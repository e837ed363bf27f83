// Package reports renders inventory registers and per-device history reports
// asynchronously and stores the results as artifacts.
package reports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inventorycore/internal/blob"
	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
	"inventorycore/pkg/history"
)

// Kind selects which report a job renders.
type Kind string

const (
	// KindDeviceRegister lists every device on record.
	KindDeviceRegister Kind = "device_register"
	// KindDisposedRegister lists disposed devices only.
	KindDisposedRegister Kind = "disposed_register"
	// KindDeviceHistory renders one device's timeline and change log.
	KindDeviceHistory Kind = "device_history"
)

// Format identifies an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Status describes the lifecycle stage of a report job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures one stored report output.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks a report job and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	DeviceID    string     `json:"device_id,omitempty"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// Input is an enqueue request.
type Input struct {
	Kind        Kind
	DeviceID    string // required for KindDeviceHistory
	Formats     []Format
	RequestedBy string
}

// Scheduler queues report jobs and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// Worker renders report jobs in the background. Jobs read committed state
// only; the worker never writes through the workflow service.
type Worker struct {
	service *core.Service
	store   blob.Store
	log     zerolog.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input Input
}

// NewWorker constructs a report worker writing into the given artifact store.
func NewWorker(service *core.Service, store blob.Store, log zerolog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		log:     log,
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the in-flight job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates and schedules a report job, returning the queued record.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	switch input.Kind {
	case KindDeviceRegister, KindDisposedRegister:
	case KindDeviceHistory:
		if strings.TrimSpace(input.DeviceID) == "" {
			return Record{}, fmt.Errorf("device id required for %s report", input.Kind)
		}
	default:
		return Record{}, fmt.Errorf("unknown report kind %q", input.Kind)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if f != FormatCSV && f != FormatJSON {
			return Record{}, fmt.Errorf("unsupported report format %q", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Kind:        input.Kind,
		DeviceID:    input.DeviceID,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("report queue full")
	}

	w.log.Info().Str("job", id).Str("kind", string(input.Kind)).Str("requested_by", input.RequestedBy).
		Msg("report job queued")
	return queued, nil
}

// Get returns a snapshot of the report record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning, "")

	payloads, err := w.render(t.input)
	if err != nil {
		w.fail(t.id, err.Error())
		return
	}

	artifacts := make([]Artifact, 0, len(payloads))
	for _, p := range payloads {
		key := fmt.Sprintf("reports/%s/%s.%s", t.id, t.input.Kind, p.format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(p.body), blob.PutOptions{
			ContentType: p.contentType,
			Metadata:    map[string]string{"job": t.id, "kind": string(t.input.Kind)},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      p.format,
			ContentType: p.contentType,
			SizeBytes:   info.Size,
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(t.id, artifacts)
}

type payload struct {
	format      Format
	contentType string
	body        []byte
}

func (w *Worker) render(input Input) ([]payload, error) {
	switch input.Kind {
	case KindDeviceRegister:
		table, err := w.registerTable(false)
		if err != nil {
			return nil, err
		}
		return w.encodeTable(input, table)
	case KindDisposedRegister:
		table, err := w.registerTable(true)
		if err != nil {
			return nil, err
		}
		return w.encodeTable(input, table)
	case KindDeviceHistory:
		return w.historyPayloads(input)
	}
	return nil, fmt.Errorf("unknown report kind %q", input.Kind)
}

func (w *Worker) encodeTable(input Input, table reportTable) ([]payload, error) {
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	out := make([]payload, 0, len(formats))
	for _, f := range formats {
		switch f {
		case FormatCSV:
			body, err := table.csv()
			if err != nil {
				return nil, err
			}
			out = append(out, payload{format: FormatCSV, contentType: "text/csv", body: body})
		case FormatJSON:
			body, err := table.json()
			if err != nil {
				return nil, err
			}
			out = append(out, payload{format: FormatJSON, contentType: "application/json", body: body})
		}
	}
	return out, nil
}

type reportTable struct {
	columns []string
	rows    [][]string
}

func (t reportTable) csv() ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.columns); err != nil {
		return nil, err
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t reportTable) json() ([]byte, error) {
	objects := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string, len(t.columns))
		for i, col := range t.columns {
			obj[col] = row[i]
		}
		objects = append(objects, obj)
	}
	return json.Marshal(objects)
}

var registerColumns = []string{
	"Serial Number", "Device Name", "Category", "Centre", "Department",
	"Assignee", "Status", "Device Condition", "Approved", "Disposal Reason",
}

func (w *Worker) registerTable(disposedOnly bool) (reportTable, error) {
	table := reportTable{columns: registerColumns}
	err := w.service.Store().View(w.ctx, func(view domain.TransactionView) error {
		for _, d := range view.ListDevices() {
			if disposedOnly != d.IsDisposed {
				continue
			}
			table.rows = append(table.rows, []string{
				d.SerialNumber,
				d.Name,
				string(d.Category),
				lookupCentre(view, d.CentreID),
				lookupDepartment(view, d.DepartmentID),
				lookupEmployee(view, d.AssigneeID),
				d.Status,
				d.Condition,
				strconv.FormatBool(d.IsApproved),
				d.DisposalReason,
			})
		}
		return nil
	})
	if err != nil {
		return reportTable{}, err
	}
	return table, nil
}

var historyColumns = []string{"Timestamp", "Change", "User", "Details"}

func (w *Worker) historyPayloads(input Input) ([]payload, error) {
	timeline, changeLog, err := w.service.DeviceHistory(w.ctx, input.DeviceID)
	if err != nil {
		return nil, err
	}
	// The JSON artifact carries the raw log too, so auditors can recheck the
	// reconstruction against its input.
	snapshots, err := w.service.Snapshots(w.ctx, input.DeviceID)
	if err != nil {
		return nil, err
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	out := make([]payload, 0, len(formats))
	for _, f := range formats {
		switch f {
		case FormatCSV:
			table := reportTable{columns: historyColumns}
			for _, entry := range changeLog {
				table.rows = append(table.rows, []string{
					entry.Timestamp.UTC().Format(time.RFC3339),
					entry.Kind,
					entry.User,
					describeDiff(entry.Diff),
				})
			}
			body, err := table.csv()
			if err != nil {
				return nil, err
			}
			out = append(out, payload{format: FormatCSV, contentType: "text/csv", body: body})
		case FormatJSON:
			body, err := json.Marshal(struct {
				DeviceID  string             `json:"device_id"`
				Timeline  []history.Interval `json:"timeline"`
				ChangeLog []history.Entry    `json:"change_log"`
				Snapshots []domain.Snapshot  `json:"snapshots"`
			}{DeviceID: input.DeviceID, Timeline: timeline, ChangeLog: changeLog, Snapshots: snapshots})
			if err != nil {
				return nil, err
			}
			out = append(out, payload{format: FormatJSON, contentType: "application/json", body: body})
		}
	}
	return out, nil
}

func describeDiff(diff []history.FieldChange) string {
	if len(diff) == 0 {
		return ""
	}
	parts := make([]string, 0, len(diff))
	for _, fc := range diff {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", fc.Field, fc.Old, fc.New))
	}
	return strings.Join(parts, "; ")
}

func lookupCentre(view domain.TransactionView, id *string) string {
	if id == nil {
		return ""
	}
	if c, ok := view.FindCentre(*id); ok {
		return c.Name
	}
	return ""
}

func lookupDepartment(view domain.TransactionView, id *string) string {
	if id == nil {
		return ""
	}
	if d, ok := view.FindDepartment(*id); ok {
		return d.Name
	}
	return ""
}

func lookupEmployee(view domain.TransactionView, id *string) string {
	if id == nil {
		return ""
	}
	if e, ok := view.FindEmployee(*id); ok {
		return e.DisplayName()
	}
	return ""
}

func (w *Worker) setStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log.Info().Str("job", id).Int("artifacts", len(artifacts)).Msg("report job completed")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.log.Warn().Str("job", id).Str("error", reason).Msg("report job failed")
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
