package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

type captureFatal struct {
	called bool
	msg    string
}

func (c *captureFatal) Fatalf(format string, args ...any) {
	c.called = true
	c.msg = fmt.Sprintf(format, args...)
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred Predicate
		in   string
		want bool
	}{
		{"internal nested", InternalImportForbidden, "formulacore/internal/core", true},
		{"internal root", InternalImportForbidden, "formulacore/internal", true},
		{"internal pkg", InternalImportForbidden, "formulacore/pkg/domain", false},
		{"third-party internal", InternalImportForbidden, "github.com/x/y/internal/z", false},
		{"yaml internal", InternalImportForbidden, "github.com/goccy/go-yaml/internal/errors", false},
		{"internal lookalike", InternalImportForbidden, "formulacore/internalx", false},
		{"infra blob", InfraImportForbidden, "formulacore/internal/infra/blob/s3", true},
		{"infra root", InfraImportForbidden, "formulacore/internal/infra", true},
		{"third-party infra", InfraImportForbidden, "github.com/x/y/internal/infra/db", false},
		{"infra facade", InfraImportForbidden, "formulacore/internal/blob", false},
		{"driver sqlite", DriverImportForbidden, "modernc.org/sqlite", true},
		{"driver pgx", DriverImportForbidden, "github.com/jackc/pgx/v5/stdlib", true},
		{"driver aws", DriverImportForbidden, "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"driver lookalike", DriverImportForbidden, "modernc.org/sqlitex", false},
		{"stdlib", DriverImportForbidden, "database/sql", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pred(tc.in); got != tc.want {
				t.Fatalf("predicate(%q)=%v want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(InfraImportForbidden, DriverImportForbidden)
	if !pred("modernc.org/sqlite") || !pred("formulacore/internal/infra/blob") {
		t.Fatalf("expected combined predicate to match both")
	}
	if pred("fmt") {
		t.Fatalf("expected fmt to be allowed")
	}
	if AnyOf()("anything") {
		t.Fatalf("empty AnyOf should match nothing")
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.go":      "package tmp\nimport \"formulacore/internal/infra/blob/fs\"\nvar _ = fs.New\n",
		"b.go":      "package tmp\nimport \"fmt\"\nvar _ = fmt.Sprint\n",
		"a_test.go": "package tmp\nimport \"modernc.org/sqlite\"\n",
		"notes.txt": "ignored",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	viols, err := directImportViolations(dir, AnyOf(InfraImportForbidden, DriverImportForbidden))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "a.go") {
		t.Fatalf("unexpected violations: %v", viols)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte("package"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := directImportViolations(dir, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, InternalImportForbidden, "none")
}

func TestTransitiveViolationsWalksGraph(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	leaf := &packages.Package{PkgPath: "modernc.org/sqlite", Imports: map[string]*packages.Package{
		"modernc.org/sqlite/internal/mu": {PkgPath: "modernc.org/sqlite/internal/mu"},
	}}
	mid := &packages.Package{PkgPath: "formulacore/internal/infra/persistence/sqlite", Imports: map[string]*packages.Package{
		"modernc.org/sqlite": leaf,
	}}
	root := &packages.Package{PkgPath: "formulacore/internal/core", Imports: map[string]*packages.Package{
		"formulacore/internal/infra/persistence/sqlite": mid,
		"fmt": {PkgPath: "fmt"},
	}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root, root}, nil }

	viols, err := transitiveDependencyViolations("./...", DriverImportForbidden)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "modernc.org/sqlite (via formulacore/internal/infra/persistence/sqlite)"
	if len(viols) != 1 || viols[0] != want {
		t.Fatalf("unexpected violations: %v", viols)
	}
}

func TestTransitiveViolationsIgnoresThirdPartyInternal(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	yamlErrors := &packages.Package{PkgPath: "github.com/goccy/go-yaml/internal/errors"}
	yaml := &packages.Package{PkgPath: "github.com/goccy/go-yaml", Imports: map[string]*packages.Package{
		yamlErrors.PkgPath: yamlErrors,
	}}
	domain := &packages.Package{PkgPath: "formulacore/pkg/domain", Imports: map[string]*packages.Package{
		yaml.PkgPath: yaml,
	}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{domain}, nil }

	viols, err := transitiveDependencyViolations(".", AnyOf(InternalImportForbidden, DriverImportForbidden))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(viols) != 0 {
		t.Fatalf("third-party internal packages must be allowed, got %v", viols)
	}
}

func TestTransitiveViolationsReportsLoadErrors(t *testing.T) {
	orig := loadPackages
	t.Cleanup(func() { loadPackages = orig })

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations(".", DriverImportForbidden); err == nil {
		t.Fatalf("expected load error")
	}

	loadPackages = func(string) ([]*packages.Package, error) {
		return []*packages.Package{{PkgPath: "x", Errors: []packages.Error{{Msg: "no Go files"}}}}, nil
	}
	_, err := transitiveDependencyViolations(".", DriverImportForbidden)
	if err == nil || !strings.Contains(err.Error(), "no Go files") {
		t.Fatalf("expected package error, got %v", err)
	}
}

func TestFailHelpers(t *testing.T) {
	var c captureFatal
	failIfTransitiveViolations(&c, "reason", nil)
	failIfDirectViolations(&c, "reason", nil)
	if c.called {
		t.Fatalf("no violations should not fail")
	}
	failIfTransitiveViolations(&c, "drivers", []string{"a", "b"})
	if !c.called || !strings.Contains(c.msg, "drivers") || !strings.Contains(c.msg, "a\nb") {
		t.Fatalf("unexpected message %q", c.msg)
	}
	c = captureFatal{}
	failIfDirectViolations(&c, "infra", []string{"x (in y.go)"})
	if !c.called || !strings.Contains(c.msg, "direct imports") {
		t.Fatalf("unexpected message %q", c.msg)
	}
}
