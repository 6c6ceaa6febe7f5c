package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTests = `[
	{"name": "a", "assertions": [{"cell": "S!A1", "equals": 1}]},
	{"name": "b", "assertions": [{"cell": "S!A2", "equals": 2}]}
]`

func TestValidate_ValidFile(t *testing.T) {
	path := writeTempFile(t, "tests.json", validTests)

	out, _, err := execCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path)
	assert.Contains(t, out, "(2 tests)")
}

func TestValidate_InvalidFileExitsOne(t *testing.T) {
	good := writeTempFile(t, "good.json", validTests)
	bad := writeTempFile(t, "bad.json", `{"name": "", "assertions": []}`)

	out, _, err := execCommand(t, "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 test files invalid")
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
}

func TestValidate_JSONEnvelope(t *testing.T) {
	good := writeTempFile(t, "good.json", validTests)
	bad := writeTempFile(t, "bad.json", `not json at all`)

	out, _, err := execCommand(t, "validate", good, bad, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   []FileValidation `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].Valid)
	assert.Equal(t, 2, resp.Data[0].Tests)
	assert.False(t, resp.Data[1].Valid)
	assert.NotEmpty(t, resp.Data[1].Error)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidTestFile, resp.Error.Code)
	assert.Equal(t, "1 of 2 test files invalid", resp.Error.Message)
}

func TestValidate_AllValidJSONStatusOK(t *testing.T) {
	good := writeTempFile(t, "good.json", validTests)

	out, _, err := execCommand(t, "validate", good, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_RequiresAtLeastOneFile(t *testing.T) {
	_, _, err := execCommand(t, "validate")
	require.Error(t, err)
}
