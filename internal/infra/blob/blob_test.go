package blob

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"spycats/internal/infra/blob/core"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "snapshots")
	store, err := Open(ctx, Options{FSRoot: root})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if store.Driver() != core.DriverFS {
		t.Fatalf("expected fs default, got %s", store.Driver())
	}
	mem, err := Open(ctx, Options{Driver: core.DriverMemory})
	if err != nil || mem.Driver() != core.DriverMemory {
		t.Fatalf("open memory: %v", err)
	}
	if _, err := Open(ctx, Options{Driver: core.DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Options{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenDefaultPersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	first, err := Open(ctx, Options{FSRoot: root})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Put(ctx, "backups/spycats-1.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := Open(ctx, Options{FSRoot: root})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	list, err := second.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected backup visible to a later open, got %d", len(list))
	}
}
