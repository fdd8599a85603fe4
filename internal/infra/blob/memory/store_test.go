package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"spycats/internal/infra/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}

	meta := map[string]string{"records": "3"}
	info, err := s.Put(ctx, "backups/a.json", strings.NewReader(`{"cats":{}}`), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["records"] = "mutated"
	if info.Size != 11 || info.Metadata["records"] != "3" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "backups/a.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"cats":{}}` || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}

	if _, err := s.Put(ctx, "other/b", strings.NewReader("b"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, err := s.List(ctx, "backups/")
	if err != nil || len(list) != 1 || list[0].Key != "backups/a.json" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	if _, err := s.PresignURL(ctx, "backups/a.json", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign, got %v", err)
	}

	existed, err := s.Delete(ctx, "backups/a.json")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, err := s.Head(ctx, "backups/a.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if existed, _ := s.Delete(ctx, "backups/a.json"); existed {
		t.Fatalf("second delete should report missing")
	}
}
