// Package goldie compares test output against golden files in ./testdata.
// Run the tests with -update to rewrite the fixtures.
package goldie

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func New(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	)
}

// Assert compares actual with testdata/<name>.golden. Line endings are normalised so fixtures
// written on unix also pass on windows.
func Assert(t *testing.T, name string, actual []byte) {
	t.Helper()

	New(t).Assert(t, name, bytes.ReplaceAll(actual, []byte("\r\n"), []byte("\n")))
}
