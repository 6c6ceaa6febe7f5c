package cell

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress_Valid(t *testing.T) {
	tests := []struct {
		input string
		sheet string
		local string
	}{
		{"Sheet1!A1", "Sheet1", "A1"},
		{"Assumptions!B2", "Assumptions", "B2"},
		{"My Model!AA10", "My Model", "AA10"},
		{"Outputs!E12", "Outputs", "E12"},
	}
	for _, tt := range tests {
		addr, err := ParseAddress(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.sheet, addr.Sheet())
		assert.Equal(t, tt.local, addr.Local())
		assert.Equal(t, tt.input, addr.String())
	}
}

func TestParseAddress_Malformed(t *testing.T) {
	tests := []struct {
		input  string
		reason string
	}{
		{"Sheet1B2", "missing '!' sheet separator"},
		{"A!B!C", "more than one '!' separator"},
		{"!B2", "empty sheet name"},
		{"Sheet1!", "empty local address"},
		{"", "missing '!' sheet separator"},
		{"!", "empty sheet name"},
	}
	for _, tt := range tests {
		_, err := ParseAddress(tt.input)
		require.Error(t, err, tt.input)

		var malformed *MalformedAddressError
		require.ErrorAs(t, err, &malformed, tt.input)
		assert.Equal(t, tt.input, malformed.Input)
		assert.Equal(t, tt.reason, malformed.Reason)
	}
}

func TestParseAddress_NormalizesSheetToNFC(t *testing.T) {
	// "é" composed vs "e" + combining acute accent.
	composed, err := ParseAddress("Caf\u00e9!A1")
	require.NoError(t, err)
	decomposed, err := ParseAddress("Cafe\u0301!A1")
	require.NoError(t, err)

	assert.Equal(t, composed.Sheet(), decomposed.Sheet())
	assert.Equal(t, composed, decomposed)
}

func TestNewAddress(t *testing.T) {
	addr := NewAddress("Assumptions", "B2")
	assert.Equal(t, "Assumptions", addr.Sheet())
	assert.Equal(t, "B2", addr.Local())
	assert.Equal(t, MustParseAddress("Assumptions!B2"), addr)
	require.NoError(t, addr.Validate())

	// Sheet names normalize the same way as parsed ones.
	assert.Equal(t, MustParseAddress("Caf\u00e9!A1"), NewAddress("Cafe\u0301", "A1"))
}

func TestAddress_Validate_ZeroValue(t *testing.T) {
	var addr Address
	err := addr.Validate()
	require.Error(t, err)

	var malformed *MalformedAddressError
	assert.ErrorAs(t, err, &malformed)
}

func TestMustParseAddress_PanicsOnMalformed(t *testing.T) {
	assert.Panics(t, func() { MustParseAddress("no-separator") })
	assert.NotPanics(t, func() { MustParseAddress("Sheet1!A1") })
}

func TestAddress_TextRoundTrip(t *testing.T) {
	addr := MustParseAddress("Assumptions!B2")

	text, err := addr.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Assumptions!B2", string(text))

	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, addr, back)
}

func TestAddress_JSONMapKey(t *testing.T) {
	m := map[Address]int{
		MustParseAddress("Outputs!E12"):    1,
		MustParseAddress("Assumptions!B2"): 2,
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Outputs!E12": 1, "Assumptions!B2": 2}`, string(data))

	var back map[Address]int
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestSortAddresses_SheetThenLocal(t *testing.T) {
	addrs := []Address{
		MustParseAddress("Outputs!E12"),
		MustParseAddress("Assumptions!B3"),
		MustParseAddress("Outputs!A1"),
		MustParseAddress("Assumptions!B2"),
	}
	SortAddresses(addrs)

	want := []Address{
		MustParseAddress("Assumptions!B2"),
		MustParseAddress("Assumptions!B3"),
		MustParseAddress("Outputs!A1"),
		MustParseAddress("Outputs!E12"),
	}
	assert.Equal(t, want, addrs)
}
