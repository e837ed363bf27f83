package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"inventorycore/internal/blob/core"
)

func TestMockRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()

	info, err := store.Put(ctx, "reports/register.csv", strings.NewReader("serial\n"), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "reports/register.csv" || info.Size != 7 {
		t.Fatalf("put info wrong: %+v", info)
	}

	if _, err := store.Put(ctx, "reports/register.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate put must fail")
	}

	got, rc, err := store.Get(ctx, "reports/register.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "serial\n" || got.ContentType != "text/csv" {
		t.Fatalf("roundtrip wrong: %q %q", body, got.ContentType)
	}
}

func TestMockListAndDelete(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"x/1", "x/2", "y/1"} {
		if _, err := store.Put(ctx, key, strings.NewReader("d"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "x/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "x/1" {
		t.Fatalf("list wrong: %+v", infos)
	}
	if ok, err := store.Delete(ctx, "x/1"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "x/1"); err == nil {
		t.Fatalf("head after delete must fail")
	}
}

func TestPresignURLMethods(t *testing.T) {
	store := NewMockForTests()
	url, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{})
	if err != nil || url == "" {
		t.Fatalf("presign GET: url=%q err=%v", url, err)
	}
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); err != core.ErrUnsupported {
		t.Fatalf("PUT presign must be unsupported, got %v", err)
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("INVENTORYCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("missing bucket must fail")
	}
}
