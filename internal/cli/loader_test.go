package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridproof/gridproof/internal/cell"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDocFile_ScalarShorthandAndObjects(t *testing.T) {
	path := writeTempFile(t, "cells.json", `{
		"Assumptions!B2": 0.05,
		"Assumptions!B4": "Scenario A",
		"Outputs!E12": {"value": 1234567.4, "formula": "=B2*B3"},
		"Outputs!E13": {"formula": "=E12*2"}
	}`)

	cells, err := loadDocFile(path)
	require.NoError(t, err)
	assert.Equal(t, cell.State{Value: 0.05}, cells["Assumptions!B2"])
	assert.Equal(t, cell.State{Value: "Scenario A"}, cells["Assumptions!B4"])
	assert.Equal(t, cell.State{Value: 1234567.4, Formula: "=B2*B3"}, cells["Outputs!E12"])
	assert.Equal(t, cell.State{Formula: "=E12*2"}, cells["Outputs!E13"])
}

func TestLoadDocFile_RejectsUnknownCellField(t *testing.T) {
	path := writeTempFile(t, "cells.json", `{"S!A1": {"value": 1, "formulla": "=B1"}}`)
	_, err := loadDocFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formulla")
}

func TestLoadDocFile_RejectsMalformedAddress(t *testing.T) {
	path := writeTempFile(t, "cells.json", `{"NoSeparator": 1}`)
	_, err := loadDocFile(path)
	require.Error(t, err)

	var malformed *cell.MalformedAddressError
	assert.ErrorAs(t, err, &malformed)
}

func TestLoadDocFile_RejectsNonStringFormula(t *testing.T) {
	path := writeTempFile(t, "cells.json", `{"S!A1": {"formula": 12}}`)
	_, err := loadDocFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formula must be a string")
}

func TestOpenDocument_RequiresExactlyOneTarget(t *testing.T) {
	_, _, err := openDocument(docTarget{})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = openDocument(docTarget{Workbook: "a.db", Doc: "b.json"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseCellList(t *testing.T) {
	addrs, err := parseCellList("Assumptions!B2, Assumptions!B3 ,Outputs!E12")
	require.NoError(t, err)
	assert.Equal(t, []cell.Address{
		cell.MustParseAddress("Assumptions!B2"),
		cell.MustParseAddress("Assumptions!B3"),
		cell.MustParseAddress("Outputs!E12"),
	}, addrs)

	_, err = parseCellList("")
	require.Error(t, err)

	_, err = parseCellList("Assumptions!B2,bogus")
	require.Error(t, err)
}
