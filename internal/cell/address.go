// Package cell defines the cell address and value model shared by the
// adapter, snapshot store, and harness.
//
// Addresses use the "Sheet!A1" form: a sheet name and a local A1-style
// reference joined by exactly one '!'. Addresses are immutable value
// types; construct them with ParseAddress or NewAddress.
package cell

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Address identifies a single cell as a (sheet, local) pair.
//
// The zero value is not a valid address. Address is comparable and safe
// to use as a map key.
type Address struct {
	sheet string
	local string
}

// MalformedAddressError reports an address string that does not satisfy
// the "Sheet!A1" form. It is always raised before any host interaction.
type MalformedAddressError struct {
	Input  string
	Reason string
}

func (e *MalformedAddressError) Error() string {
	return fmt.Sprintf("malformed cell address %q: %s", e.Input, e.Reason)
}

// ParseAddress parses a "Sheet!A1"-style address.
//
// The address must contain exactly one '!' separator with non-empty
// parts on both sides. Sheet names are NFC-normalized so that lookups
// against the host agree regardless of the Unicode form the test file
// was authored in.
func ParseAddress(s string) (Address, error) {
	switch strings.Count(s, "!") {
	case 0:
		return Address{}, &MalformedAddressError{Input: s, Reason: "missing '!' sheet separator"}
	case 1:
		// ok
	default:
		return Address{}, &MalformedAddressError{Input: s, Reason: "more than one '!' separator"}
	}
	sheet, local, _ := strings.Cut(s, "!")
	if sheet == "" {
		return Address{}, &MalformedAddressError{Input: s, Reason: "empty sheet name"}
	}
	if local == "" {
		return Address{}, &MalformedAddressError{Input: s, Reason: "empty local address"}
	}
	return Address{sheet: NormalizeSheet(sheet), local: local}, nil
}

// MustParseAddress is ParseAddress that panics on error.
// Intended for fixtures and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewAddress builds an address from its parts without parsing.
// Both parts must be non-empty; Validate reports violations.
func NewAddress(sheet, local string) Address {
	return Address{sheet: NormalizeSheet(sheet), local: local}
}

// Sheet returns the NFC-normalized sheet name.
func (a Address) Sheet() string { return a.sheet }

// Local returns the local A1-style reference within the sheet.
func (a Address) Local() string { return a.local }

// String renders the canonical "Sheet!A1" form.
func (a Address) String() string { return a.sheet + "!" + a.local }

// Validate reports whether the address has both parts.
// A zero-valued Address fails validation.
func (a Address) Validate() error {
	if a.sheet == "" || a.local == "" {
		return &MalformedAddressError{Input: a.String(), Reason: "sheet and local address must both be non-empty"}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler so addresses serialize
// as "Sheet!A1" strings, including as JSON map keys.
func (a Address) MarshalText() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// NormalizeSheet returns the NFC form of a sheet name. Hosts compare
// sheet names by codepoints; normalizing both sides keeps a composed
// name in a test file matched against a decomposed name in the host.
func NormalizeSheet(name string) string {
	return norm.NFC.String(name)
}

// SortAddresses sorts addresses by sheet, then local reference.
// Batched host operations iterate in this order so that round-trips
// are deterministic and reproducible in traces.
func SortAddresses(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].sheet != addrs[j].sheet {
			return addrs[i].sheet < addrs[j].sheet
		}
		return addrs[i].local < addrs[j].local
	})
}
