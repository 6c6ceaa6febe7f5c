package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridproof/gridproof/internal/cell"
)

// TestCase is one declarative formula-model test: write the inputs,
// recalculate, and check each assertion against the computed outputs.
type TestCase struct {
	Name       string
	Inputs     map[cell.Address]cell.Scalar
	Assertions []Assertion
}

// Assertion expects one cell to equal a scalar within a tolerance.
type Assertion struct {
	Cell      cell.Address
	Equals    cell.Scalar
	Tolerance float64
}

// ProtectedAddresses returns the union of every address referenced by
// the test's inputs or assertions: the minimal set that must be
// snapshotted before the test and restored after it.
func (tc TestCase) ProtectedAddresses() []cell.Address {
	return protectedAddresses(tc)
}

func protectedAddresses(tcs ...TestCase) []cell.Address {
	seen := make(map[cell.Address]struct{})
	var out []cell.Address
	add := func(a cell.Address) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, tc := range tcs {
		for addr := range tc.Inputs {
			add(addr)
		}
		for _, asrt := range tc.Assertions {
			add(asrt.Cell)
		}
	}
	cell.SortAddresses(out)
	return out
}

// Wire types: test files address cells by string, so the typed model is
// built by conversion rather than direct unmarshaling.

type testCaseFile struct {
	Name       string                 `json:"name" yaml:"name"`
	Inputs     map[string]cell.Scalar `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Assertions []assertionFile        `json:"assertions" yaml:"assertions"`
}

type assertionFile struct {
	Cell      string      `json:"cell" yaml:"cell"`
	Equals    cell.Scalar `json:"equals" yaml:"equals"`
	Tolerance *float64    `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

// LoadFile reads test cases from a JSON or YAML file. The file holds
// either a single test case object or an array of them. Malformed
// files fail here, before any test runs.
func LoadFile(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test file: %w", err)
	}
	var cases []TestCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cases, err = ParseYAML(data)
	default:
		cases, err = ParseJSON(data)
	}
	if err != nil {
		if pe, ok := err.(*ParseError); ok && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return cases, nil
}

// ParseJSON parses a JSON test file: one object or an array of objects.
// Unknown fields are rejected to catch typos.
func ParseJSON(data []byte) ([]TestCase, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &ParseError{Message: "empty test file"}
	}

	var files []testCaseFile
	var generic []any
	if trimmed[0] == '[' {
		if err := strictJSON(data, &files); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
	} else {
		var single testCaseFile
		if err := strictJSON(data, &single); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
		files = []testCaseFile{single}
		var g any
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
		generic = []any{g}
	}

	if err := validateSchema(generic); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	return convertCases(files)
}

// ParseYAML parses a YAML test file with strict unknown-field
// rejection, mirroring ParseJSON.
func ParseYAML(data []byte) ([]TestCase, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if len(root.Content) == 0 {
		return nil, &ParseError{Message: "empty test file"}
	}

	var files []testCaseFile
	if root.Content[0].Kind == yaml.SequenceNode {
		if err := strictYAML(data, &files); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
	} else {
		var single testCaseFile
		if err := strictYAML(data, &single); err != nil {
			return nil, &ParseError{Message: err.Error()}
		}
		files = []testCaseFile{single}
	}

	var generic []any
	for _, f := range files {
		generic = append(generic, genericCase(f))
	}
	if err := validateSchema(generic); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	return convertCases(files)
}

func strictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func strictYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// genericCase rebuilds the schema-facing shape of a decoded case.
// YAML decoding cannot hand back a generic tree with the same certainty
// as JSON (anchors, tags), so validation runs on the decoded struct.
func genericCase(f testCaseFile) map[string]any {
	m := map[string]any{"name": f.Name}
	if f.Inputs != nil {
		inputs := make(map[string]any, len(f.Inputs))
		for k, v := range f.Inputs {
			inputs[k] = v
		}
		m["inputs"] = inputs
	}
	asserts := make([]any, len(f.Assertions))
	for i, a := range f.Assertions {
		am := map[string]any{"cell": a.Cell, "equals": a.Equals}
		if a.Tolerance != nil {
			am["tolerance"] = *a.Tolerance
		}
		asserts[i] = am
	}
	m["assertions"] = asserts
	return m
}

func convertCases(files []testCaseFile) ([]TestCase, error) {
	cases := make([]TestCase, 0, len(files))
	names := make(map[string]struct{}, len(files))
	for i, f := range files {
		tc, err := convertCase(f)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("test case %d (%q): %v", i, f.Name, err)}
		}
		if _, dup := names[tc.Name]; dup {
			return nil, &ParseError{Message: fmt.Sprintf("duplicate test name %q", tc.Name)}
		}
		names[tc.Name] = struct{}{}
		cases = append(cases, tc)
	}
	return cases, nil
}

func convertCase(f testCaseFile) (TestCase, error) {
	if f.Name == "" {
		return TestCase{}, fmt.Errorf("name is required")
	}
	if len(f.Assertions) == 0 {
		return TestCase{}, fmt.Errorf("assertions list is required and must be non-empty")
	}

	tc := TestCase{Name: f.Name}
	if len(f.Inputs) > 0 {
		tc.Inputs = make(map[cell.Address]cell.Scalar, len(f.Inputs))
		for key, val := range f.Inputs {
			addr, err := cell.ParseAddress(key)
			if err != nil {
				return TestCase{}, fmt.Errorf("input %q: %w", key, err)
			}
			tc.Inputs[addr] = val
		}
	}

	tc.Assertions = make([]Assertion, 0, len(f.Assertions))
	for i, a := range f.Assertions {
		addr, err := cell.ParseAddress(a.Cell)
		if err != nil {
			return TestCase{}, fmt.Errorf("assertion %d: %w", i, err)
		}
		tol := 0.0
		if a.Tolerance != nil {
			tol = *a.Tolerance
		}
		if tol < 0 {
			return TestCase{}, fmt.Errorf("assertion %d: tolerance must be >= 0, got %v", i, tol)
		}
		tc.Assertions = append(tc.Assertions, Assertion{Cell: addr, Equals: a.Equals, Tolerance: tol})
	}
	return tc, nil
}
