package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"inventorycore/internal/blob/core"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	info, err := store.Put(ctx, "reports/device-register.csv", strings.NewReader("serial,name\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"job": "job-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 12 || info.ContentType != "text/csv" || info.ETag == "" {
		t.Fatalf("put info wrong: %+v", info)
	}

	got, rc, err := store.Get(ctx, "reports/device-register.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "serial,name\n" {
		t.Fatalf("content mismatch: %q", body)
	}
	if got.Metadata["job"] != "job-1" {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}

	if _, err := store.Put(ctx, "reports/device-register.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate put must fail")
	}
}

func TestKeySanitization(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "/abs", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"reports/a.csv", "reports/b.json", "other/c.txt"} {
		if _, err := store.Put(ctx, key, strings.NewReader("data"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/a.csv" || infos[1].Key != "reports/b.json" {
		t.Fatalf("list wrong: %+v", infos)
	}

	ok, err := store.Delete(ctx, "reports/a.csv")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, "reports/a.csv")
	if err != nil || ok {
		t.Fatalf("second delete must be (false, nil): ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "reports/a.csv"); err == nil {
		t.Fatalf("head after delete must fail")
	}
}

func TestPresignURL(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	url, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{})
	if err != nil || !strings.Contains(url, "local.artifacts") {
		t.Fatalf("presign: url=%q err=%v", url, err)
	}
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("PUT presign must be unsupported, got %v", err)
	}
}
