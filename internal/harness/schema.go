package harness

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed testcase.cue
var schemaSource string

// validateSchema unifies each decoded test case with the embedded CUE
// schema. Structural problems (missing name, negative tolerance, wrong
// scalar shapes) are reported with their path before any conversion.
func validateSchema(cases []any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal: test case schema does not compile: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#TestCase"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("internal: #TestCase missing from schema: %w", err)
	}

	for i, c := range cases {
		v := def.Unify(ctx.Encode(c))
		if err := v.Validate(cue.Concrete(false)); err != nil {
			return fmt.Errorf("test case %d: %s", i, cueerrors.Details(err, nil))
		}
	}
	return nil
}
