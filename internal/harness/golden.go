package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertSuiteGolden compares a suite result against the golden file
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// Suite results are deterministic when the runner uses a fixed token
// generator and the document double is seeded identically, so the
// golden file is the source of truth for the result surface.
func AssertSuiteGolden(t *testing.T, name string, suite SuiteResult) {
	t.Helper()

	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		t.Fatalf("marshal suite result: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
