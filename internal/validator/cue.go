package validator

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/querier/internal/ordmap"
)

// CUESchema is a FlatValidator expressed in CUE.
//
// The source is a struct of constraints keyed by canonical key:
//
//	"filter:age[>]"?: int & >=18
//	"page:size"?:     <=50
//
// CUE structs are open, so keys the source does not mention are allowed.
// Values are checked, never rewritten.
type CUESchema struct {
	mu     sync.Mutex // cue.Context is not safe for concurrent use
	ctx    *cue.Context
	schema cue.Value
}

// NewCUESchema compiles src.
func NewCUESchema(src string) (*CUESchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("consumer.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile consumer schema: %w", err)
	}
	return &CUESchema{ctx: ctx, schema: v}, nil
}

// ValidateFlat implements FlatValidator.
func (s *CUESchema) ValidateFlat(values *ordmap.Map[any]) (*ordmap.Map[any], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(ordmap.Plain(values))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	if err := s.schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return nil, cueValidationError(err)
	}
	return values, nil
}

// cueValidationError converts the first CUE error into a ValidationError.
// CUE quotes labels that are not identifiers ("filter:age[>]"); JoinPath
// strips that quoting.
func cueValidationError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return NewValidationError(LayerConsumer, "", err.Error())
	}
	first := errs[0]
	format, args := first.Msg()
	return NewValidationError(LayerConsumer, JoinPath("", first.Path()), fmt.Sprintf(format, args...))
}
