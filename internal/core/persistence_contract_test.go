package core

import (
	"go/types"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Concrete PersistentStore implementations are confined to the vetted
// backend packages. Adding a backend means updating this list deliberately.
var sanctionedStorePackages = []string{
	"inventorycore/internal/infra/persistence/memory",
	"inventorycore/internal/infra/persistence/postgres",
	"inventorycore/internal/infra/persistence/sqlite",
}

func TestPersistentStoreImplementationsConfined(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "inventorycore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	iface := lookupInterface(t, pkgs, "inventorycore/pkg/domain", "PersistentStore")

	var strays []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		sanctioned := false
		for _, allowed := range sanctionedStorePackages {
			if p.PkgPath == allowed {
				sanctioned = true
				break
			}
		}
		if sanctioned {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			named, ok := scope.Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if types.Implements(types.NewPointer(named), iface) {
				strays = append(strays, p.PkgPath+"."+name)
			}
		}
	}
	if len(strays) > 0 {
		sort.Strings(strays)
		t.Fatalf("PersistentStore implemented outside sanctioned backend packages:\n%s", strings.Join(strays, "\n"))
	}
}

func lookupInterface(t *testing.T, pkgs []*packages.Package, pkgPath, name string) *types.Interface {
	t.Helper()
	for _, p := range pkgs {
		if p.PkgPath != pkgPath || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup(name)
		if obj == nil {
			t.Fatalf("%s.%s not found", pkgPath, name)
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("%s.%s is not an interface", pkgPath, name)
		}
		return iface
	}
	t.Fatalf("package %s not loaded", pkgPath)
	return nil
}
