package decl

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed resource.cue
var resourceSchema string

// LoadError is a declaration that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Load reads a declaration, choosing the format by extension: .cue, .yaml or
// .yml.
func Load(path string) (*Resource, error) {
	var parse func(string, []byte) (*Resource, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		parse = ParseCUE
	case ".yaml", ".yml":
		parse = ParseYAML
	default:
		return nil, &LoadError{File: path, Message: "unsupported declaration format (want .cue, .yaml or .yml)"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("read declaration: %v", err)}
	}
	return parse(path, data)
}

// ParseCUE parses a CUE declaration. filename is used in positions.
func ParseCUE(filename string, src []byte) (*Resource, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(resourceSchema, cue.Filename("resource.cue")).
		LookupPath(cue.ParsePath("#Resource"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("compile #Resource: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	r := &Resource{}
	if err := unified.Decode(r); err != nil {
		return nil, formatCUEError(filename, err)
	}
	if err := r.Validate(); err != nil {
		return nil, &LoadError{File: filename, Message: err.Error()}
	}
	return r, nil
}

// ParseYAML parses a YAML declaration. Unknown fields are rejected.
func ParseYAML(filename string, src []byte) (*Resource, error) {
	r := &Resource{}
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil {
		return nil, &LoadError{File: filename, Message: fmt.Sprintf("parse YAML: %v", err)}
	}
	if err := r.Validate(); err != nil {
		return nil, &LoadError{File: filename, Message: err.Error()}
	}
	return r, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{File: filename, Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	for _, pos := range cueerrors.Positions(first) {
		// prefer a position in the declaration over one in #Resource
		if pos.Filename() == filename {
			return &LoadError{File: filename, Message: msg, Pos: pos}
		}
	}
	return &LoadError{File: filename, Message: msg}
}
