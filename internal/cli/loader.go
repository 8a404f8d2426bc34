package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/querier/internal/decl"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/qs"
	"github.com/roach88/querier/internal/validator"
)

// LoadError is a command input that could not be loaded, tagged with an
// error code.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResource loads one declaration file.
func LoadResource(path string) (*decl.Resource, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("declaration not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing declaration: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("is a directory: %s", path)}
	}
	if !isDeclarationFile(path) {
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported declaration format: %s", filepath.Base(path))}
	}

	resource, err := decl.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidDecl, Message: err.Error()}
	}
	return resource, nil
}

// FindDeclarationFiles returns every .cue, .yaml and .yml file under dir.
func FindDeclarationFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isDeclarationFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func isDeclarationFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue", ".yaml", ".yml":
		return true
	}
	return false
}

// ParseQuery decodes a query given on the command line: a JSON object when
// asJSON is set, otherwise a bracket query string.
func ParseQuery(raw string, asJSON bool) (any, error) {
	if asJSON {
		query, err := ordmap.Decode([]byte(raw))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadQuery, Message: fmt.Sprintf("invalid JSON query: %v", err)}
		}
		return query, nil
	}
	return qs.Parse(strings.TrimPrefix(raw, "?"))
}

// queryErrorCode maps a query failure to its error code and exit code.
func queryErrorCode(err error) (string, int) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, ExitCommandError
	}
	if validator.IsValidationError(err) {
		return ErrCodeRejected, ExitFailure
	}
	return ErrCodeGeneric, ExitCommandError
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No declaration files found
	ErrCodeInvalidDecl = "E004" // Declaration failed to load or validate
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeUnsupported = "E006" // Unsupported declaration format
	ErrCodeWriteFailed = "E007" // File write error

	// Query errors
	ErrCodeBadQuery  = "E101" // Query could not be decoded
	ErrCodeRejected  = "E102" // Query rejected by validation
	ErrCodeExecution = "E103" // Statement failed in the database
)
