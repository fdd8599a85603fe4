package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "spycats/internal/core", true},
		{"internal other module", InternalImportForbidden, "example.com/mod/internal/x", true},
		{"internal pkg", InternalImportForbidden, "spycats/pkg/domain", false},
		{"adapter", AdapterImportForbidden, "spycats/internal/adapters/httpapi", true},
		{"adapter cmd", AdapterImportForbidden, "spycats/cmd/spycatd", true},
		{"adapter infra", AdapterImportForbidden, "spycats/internal/infra/catapi", false},
		{"core", CoreImportForbidden, "spycats/internal/core", true},
		{"core prefix", CoreImportForbidden, "spycats/internal/corelike", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
	if !AnyOf(CoreImportForbidden, AdapterImportForbidden)("spycats/cmd/spycatd") {
		t.Fatalf("AnyOf should match any predicate")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	src := "package x\n\nimport (\n\t\"fmt\"\n\t\"spycats/internal/core\"\n)\n\nvar _ = fmt.Sprint\n"
	if err := os.WriteFile(filepath.Join(dir, "x.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), []byte("package x\n\nimport _ \"spycats/cmd/spycatd\"\n"), 0o600); err != nil {
		t.Fatalf("write test: %v", err)
	}
	viols, err := directImportViolations(dir, AnyOf(CoreImportForbidden, AdapterImportForbidden))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "spycats/internal/core (in x.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "layering", viols)
	if rec.msg == "" {
		t.Fatalf("expected failure message")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), CoreImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
