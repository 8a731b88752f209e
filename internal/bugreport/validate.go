package bugreport

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/bugzapp/internal/qa"
)

//go:embed schema.cue
var schemaSource string

// Validator checks bug reports against the embedded CUE schema.
//
// Thread-safety: Validate is safe for concurrent use; CUE evaluation is
// serialized internally.
type Validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile bug report schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#BugReport"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #BugReport: %w", err)
	}
	return &Validator{ctx: ctx, def: def}, nil
}

// Validate returns a VALIDATION error describing every violation in r.
func (v *Validator) Validate(r qa.BugReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return qa.WrapError(qa.ErrCodeValidation, err, "encode bug report")
	}
	expr, err := cuejson.Extract("report.json", data)
	if err != nil {
		return qa.WrapError(qa.ErrCodeValidation, err, "decode bug report")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return qa.WrapError(qa.ErrCodeValidation, err, "decode bug report")
	}
	if err := v.def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return qa.WrapError(qa.ErrCodeValidation, err, "bug report %q is invalid", r.Title)
	}
	return nil
}
