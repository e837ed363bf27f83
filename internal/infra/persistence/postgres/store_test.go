package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"inventorycore/pkg/domain"
)

// stubConn is an in-memory driver.Conn speaking just enough SQL for the
// JSON-bucket store: the state DDL, the bucket select and the upsert.
type stubConn struct {
	execs      []string
	buckets    map[string][]byte
	failUpsert bool
	failCommit bool
}

var stubSeq atomic.Int64

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{buckets: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported by stub")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{conn: c}, nil
}

func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if c.failUpsert {
			return nil, fmt.Errorf("upsert refused")
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload, got %d args", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("bucket arg is %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload arg is %T", args[1].Value)
		}
		c.buckets[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unexpected exec: %s", query)
	}
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToUpper(query), "FROM STATE") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]driver.Value, 0, len(names))
	for _, name := range names {
		rows = append(rows, []driver.Value{name, append([]byte(nil), c.buckets[name]...)})
	}
	return &stubRows{rows: rows}, nil
}

type stubTx struct {
	conn *stubConn
}

func (t stubTx) Commit() error {
	if t.conn.failCommit {
		return fmt.Errorf("commit refused")
	}
	return nil
}

func (t stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func openStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreAppliesDDLAndHydrates(t *testing.T) {
	db, conn := newStubDB(t)
	seed, err := json.Marshal([]domain.Device{{
		Base:         domain.Base{ID: "dev-1"},
		Name:         "ThinkPad T14",
		SerialNumber: "SN-PG-1",
		Status:       domain.StatusAvailable,
	}})
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	conn.buckets["devices"] = seed

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	device, ok := store.GetDevice("dev-1")
	if !ok {
		t.Fatalf("seeded device missing after hydration")
	}
	if device.SerialNumber != "SN-PG-1" {
		t.Fatalf("unexpected serial %q", device.SerialNumber)
	}

	sawDDL := false
	for _, stmt := range conn.execs {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(stmt)), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("state DDL not applied, execs: %v", conn.execs)
	}
}

func TestRunInTransactionPersistsBuckets(t *testing.T) {
	store, conn := openStubStore(t)

	var deviceID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		d, err := tx.CreateDevice(domain.Device{
			Category:     domain.CategoryLaptop,
			Name:         "Latitude 5440",
			SerialNumber: "SN-PG-2",
			Condition:    "Good",
			Status:       domain.StatusAvailable,
		}, "user-1")
		if err != nil {
			return err
		}
		deviceID = d.ID
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, bucket := range []string{"devices", "staged_edits", "agreements", "notifications", "employees", "centres", "departments", "users", "snapshots"} {
		if _, ok := conn.buckets[bucket]; !ok {
			t.Fatalf("bucket %s not persisted", bucket)
		}
	}
	var devices []domain.Device
	if err := json.Unmarshal(conn.buckets["devices"], &devices); err != nil {
		t.Fatalf("decode devices bucket: %v", err)
	}
	if len(devices) != 1 || devices[0].SerialNumber != "SN-PG-2" {
		t.Fatalf("unexpected devices bucket %+v", devices)
	}
	var snapshots map[string][]domain.Snapshot
	if err := json.Unmarshal(conn.buckets["snapshots"], &snapshots); err != nil {
		t.Fatalf("decode snapshots bucket: %v", err)
	}
	if len(snapshots[deviceID]) != 1 {
		t.Fatalf("expected 1 snapshot for %s, got %d", deviceID, len(snapshots[deviceID]))
	}
}

func TestPersistFailureSurfaces(t *testing.T) {
	store, conn := openStubStore(t)
	conn.failUpsert = true

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateDevice(domain.Device{SerialNumber: "SN-PG-3"}, "user-1")
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "upsert") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
}

func TestCommitFailureSurfaces(t *testing.T) {
	store, conn := openStubStore(t)
	conn.failCommit = true

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateDevice(domain.Device{SerialNumber: "SN-PG-4"}, "user-1")
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
}

func TestCorruptBucketFailsOpen(t *testing.T) {
	db, conn := newStubDB(t)
	conn.buckets["devices"] = []byte("{not json")

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected decode error for corrupt bucket")
	}
}
