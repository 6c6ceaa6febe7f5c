package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gridproof/gridproof/internal/cell"
	"github.com/gridproof/gridproof/internal/host"
	"github.com/gridproof/gridproof/internal/memdoc"
	"github.com/gridproof/gridproof/internal/store"
)

// docTarget selects the document a command runs against: a persistent
// sqlite workbook or an in-memory document seeded from a JSON cell map.
type docTarget struct {
	Workbook string
	Doc      string
}

// openDocument opens the selected document. The returned close func is
// a no-op for in-memory documents.
func openDocument(t docTarget) (host.Document, func() error, error) {
	switch {
	case t.Workbook != "" && t.Doc != "":
		return nil, nil, NewExitError(ExitCommandError, "use either --workbook or --doc, not both")
	case t.Workbook != "":
		wb, err := store.Open(t.Workbook)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "open workbook", err)
		}
		return wb, wb.Close, nil
	case t.Doc != "":
		cells, err := loadDocFile(t.Doc)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "load document file", err)
		}
		doc := memdoc.New()
		for addr, st := range cells {
			doc.Set(addr, st)
		}
		return doc, func() error { return nil }, nil
	default:
		return nil, nil, NewExitError(ExitCommandError, "a document is required: pass --workbook <file.db> or --doc <cells.json>")
	}
}

// loadDocFile parses a JSON cell map:
//
//	{"Assumptions!B2": 0.05,
//	 "Outputs!E12": {"value": 1234567.4, "formula": "=B2*B3"}}
//
// Bare scalars are shorthand for a value-only cell.
func loadDocFile(path string) (map[string]cell.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cells := make(map[string]cell.State, len(raw))
	for addr, msg := range raw {
		if _, err := cell.ParseAddress(addr); err != nil {
			return nil, err
		}
		st, err := parseCellEntry(msg)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", addr, err)
		}
		cells[addr] = st
	}
	return cells, nil
}

func parseCellEntry(msg json.RawMessage) (cell.State, error) {
	var generic any
	if err := json.Unmarshal(msg, &generic); err != nil {
		return cell.State{}, err
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return cell.State{Value: generic}, nil
	}
	var st cell.State
	for key, val := range obj {
		switch key {
		case "value":
			st.Value = val
		case "formula":
			f, ok := val.(string)
			if !ok {
				return cell.State{}, fmt.Errorf("formula must be a string, got %T", val)
			}
			st.Formula = f
		default:
			return cell.State{}, fmt.Errorf("unknown cell field %q", key)
		}
	}
	return st, nil
}

// parseCellList splits a comma-separated "Sheet!A1,Sheet!B2" flag value
// into validated addresses.
func parseCellList(spec string) ([]cell.Address, error) {
	var addrs []cell.Address
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := cell.ParseAddress(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no cell addresses given")
	}
	return addrs, nil
}
