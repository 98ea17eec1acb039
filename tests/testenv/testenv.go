// Package testenv refuses to run the suites outside GO_ENV=test, since they
// migrate and truncate whatever database the environment points at.
package testenv

import (
	"fmt"
	"os"
	"testing"
)

const want = "test"

// Run executes the package's tests when GO_ENV=test and returns the exit code.
//
//	func TestMain(m *testing.M) { os.Exit(testenv.Run(m)) }
func Run(m *testing.M) int {
	if env := os.Getenv("GO_ENV"); env != want {
		fmt.Fprintf(os.Stderr, "refusing to run tests with GO_ENV=%q; run GO_ENV=test go test ./...\n", env)
		return 1
	}
	return m.Run()
}

// MustSet forces GO_ENV=test for suites that load configuration themselves
func MustSet(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", want)
}
