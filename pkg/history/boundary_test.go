package history_test

import (
	"testing"

	"inventorycore/testutil"
)

// History reconstruction is pure domain logic; keeping it free of internal
// imports lets callers embed it without pulling in storage or transport.
func TestHistoryDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/history must not depend on internal packages")
}
