package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridproof/gridproof/internal/cell"
)

func TestParseJSON_SingleObject(t *testing.T) {
	data := []byte(`{
		"name": "growth-rate-flows-through",
		"inputs": {"Assumptions!B2": 0.05, "Assumptions!B3": 100000},
		"assertions": [
			{"cell": "Outputs!E12", "equals": 1234567, "tolerance": 1}
		]
	}`)

	cases, err := ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Equal(t, "growth-rate-flows-through", tc.Name)
	assert.Equal(t, 0.05, tc.Inputs[cell.MustParseAddress("Assumptions!B2")])
	assert.Equal(t, 100000.0, tc.Inputs[cell.MustParseAddress("Assumptions!B3")])
	require.Len(t, tc.Assertions, 1)
	assert.Equal(t, cell.MustParseAddress("Outputs!E12"), tc.Assertions[0].Cell)
	assert.Equal(t, 1234567.0, tc.Assertions[0].Equals)
	assert.Equal(t, 1.0, tc.Assertions[0].Tolerance)
}

func TestParseJSON_Array(t *testing.T) {
	data := []byte(`[
		{"name": "first", "assertions": [{"cell": "S!A1", "equals": 1}]},
		{"name": "second", "assertions": [{"cell": "S!A2", "equals": "ok"}]}
	]`)

	cases, err := ParseJSON(data)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "first", cases[0].Name)
	assert.Equal(t, "second", cases[1].Name)
	assert.Equal(t, "ok", cases[1].Assertions[0].Equals)
}

func TestParseJSON_ToleranceDefaultsToZero(t *testing.T) {
	data := []byte(`{"name": "t", "assertions": [{"cell": "S!A1", "equals": 5}]}`)
	cases, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cases[0].Assertions[0].Tolerance)
}

func TestParseJSON_UnknownFieldRejected(t *testing.T) {
	data := []byte(`{"name": "t", "asertions": [{"cell": "S!A1", "equals": 5}]}`)
	_, err := ParseJSON(data)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Message, "asertions")
}

func TestParseJSON_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", `{"assertions": [{"cell": "S!A1", "equals": 1}]}`},
		{"empty name", `{"name": "", "assertions": [{"cell": "S!A1", "equals": 1}]}`},
		{"empty assertions", `{"name": "t", "assertions": []}`},
		{"negative tolerance", `{"name": "t", "assertions": [{"cell": "S!A1", "equals": 1, "tolerance": -0.5}]}`},
		{"non-scalar expected", `{"name": "t", "assertions": [{"cell": "S!A1", "equals": {"nested": 1}}]}`},
		{"empty file", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.data))
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParseJSON_MalformedCellAddress(t *testing.T) {
	data := []byte(`{"name": "t", "assertions": [{"cell": "NoSeparator", "equals": 1}]}`)
	_, err := ParseJSON(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSeparator")
}

func TestParseJSON_DuplicateTestNames(t *testing.T) {
	data := []byte(`[
		{"name": "same", "assertions": [{"cell": "S!A1", "equals": 1}]},
		{"name": "same", "assertions": [{"cell": "S!A2", "equals": 2}]}
	]`)
	_, err := ParseJSON(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate test name "same"`)
}

func TestParseYAML_Sequence(t *testing.T) {
	data := []byte(`
- name: first
  inputs:
    "Assumptions!B2": 0.05
  assertions:
    - cell: "Outputs!E12"
      equals: 1234567
      tolerance: 1
- name: second
  assertions:
    - cell: "Outputs!E13"
      equals: done
`)
	cases, err := ParseYAML(data)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, 0.05, cases[0].Inputs[cell.MustParseAddress("Assumptions!B2")])
	assert.Equal(t, 1.0, cases[0].Assertions[0].Tolerance)
	assert.Equal(t, "done", cases[1].Assertions[0].Equals)
}

func TestParseYAML_SingleDocument(t *testing.T) {
	data := []byte(`
name: single
assertions:
  - cell: "S!A1"
    equals: true
`)
	cases, err := ParseYAML(data)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, true, cases[0].Assertions[0].Equals)
}

func TestParseYAML_UnknownFieldRejected(t *testing.T) {
	data := []byte(`
name: t
tolerance: 1
assertions:
  - cell: "S!A1"
    equals: 1
`)
	_, err := ParseYAML(data)
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestLoadFile_PicksParserByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "cases.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(
		`{"name": "j", "assertions": [{"cell": "S!A1", "equals": 1}]}`), 0o644))
	yamlPath := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(
		"name: y\nassertions:\n  - cell: \"S!A1\"\n    equals: 1\n"), 0o644))

	jc, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "j", jc[0].Name)

	yc, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "y", yc[0].Name)
}

func TestLoadFile_ParseErrorCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "t"}`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
	assert.Contains(t, err.Error(), path)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestProtectedAddresses_UnionOfInputsAndAssertions(t *testing.T) {
	tc := TestCase{
		Name: "t",
		Inputs: map[cell.Address]cell.Scalar{
			cell.MustParseAddress("Assumptions!B3"): 1.0,
			cell.MustParseAddress("Assumptions!B2"): 2.0,
		},
		Assertions: []Assertion{
			{Cell: cell.MustParseAddress("Outputs!E12")},
			{Cell: cell.MustParseAddress("Assumptions!B2")}, // overlaps an input
		},
	}

	got := tc.ProtectedAddresses()
	assert.Equal(t, []cell.Address{
		cell.MustParseAddress("Assumptions!B2"),
		cell.MustParseAddress("Assumptions!B3"),
		cell.MustParseAddress("Outputs!E12"),
	}, got)
}

func TestProtectedAddresses_SuiteUnion(t *testing.T) {
	a := TestCase{Name: "a", Assertions: []Assertion{{Cell: cell.MustParseAddress("S!A1")}}}
	b := TestCase{
		Name:       "b",
		Inputs:     map[cell.Address]cell.Scalar{cell.MustParseAddress("S!A1"): 1.0},
		Assertions: []Assertion{{Cell: cell.MustParseAddress("S!B1")}},
	}

	got := protectedAddresses(a, b)
	assert.Equal(t, []cell.Address{
		cell.MustParseAddress("S!A1"),
		cell.MustParseAddress("S!B1"),
	}, got)
}
