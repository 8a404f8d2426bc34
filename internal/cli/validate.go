package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// DeclarationResult is the outcome of validating one declaration file.
type DeclarationResult struct {
	File  string `json:"file"`
	Table string `json:"table,omitempty"`
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                `json:"valid"`
	Declarations []DeclarationResult `json:"declarations"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate resource declarations",
		Long: `Validate CUE and YAML resource declarations.

Each path is a declaration file or a directory searched recursively for
.cue, .yaml and .yml files. A declaration is valid when it matches the
resource schema, uses safe SQL identifiers, lists only operators the SQL
backend supports and carries a consumer rule that compiles.

Examples:
  querier validate ./resources
  querier validate ./resources/people.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := expandPaths(paths)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, ErrCodeScanError, err.Error())
	}
	formatter.VerboseLog("Found %d declaration file(s)", len(files))

	result := ValidationResult{Valid: true, Declarations: make([]DeclarationResult, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		result.Declarations = append(result.Declarations, validateFile(file))
		if !result.Declarations[len(result.Declarations)-1].Valid {
			result.Valid = false
		}
	}

	return outputValidationResult(formatter, result)
}

// expandPaths resolves directories to the declaration files they contain.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := FindDeclarationFiles(path)
		if err != nil {
			return nil, fmt.Errorf("error scanning directory: %w", err)
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no declaration files found in %s", path)}
		}
		files = append(files, found...)
	}
	return files, nil
}

// validateFile loads a declaration and compiles its consumer rules.
func validateFile(file string) DeclarationResult {
	result := DeclarationResult{File: file}

	resource, err := LoadResource(file)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Code = loadErr.Code
			result.Error = loadErr.Message
		} else {
			result.Code = ErrCodeGeneric
			result.Error = err.Error()
		}
		return result
	}
	result.Table = resource.Table

	if _, err := resource.ConsumerValidator(); err != nil {
		result.Code = ErrCodeInvalidDecl
		result.Error = fmt.Sprintf("consumer: %v", err)
		return result
	}

	result.Valid = true
	return result
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationResult reports every file and returns ExitFailure when any
// declaration is invalid.
func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, d := range result.Declarations {
		if !d.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if invalid > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    firstInvalid(result).Code,
				Message: fmt.Sprintf("%d declaration(s) invalid", invalid),
			}
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, d := range result.Declarations {
			if d.Valid {
				fmt.Fprintf(w, "✓ %s (%s)\n", d.File, d.Table)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", d.File)
			fmt.Fprintf(w, "  %s: %s\n", d.Code, d.Error)
		}
		if invalid == 0 {
			fmt.Fprintln(w, "✓ All declarations valid")
		}
	}

	if invalid > 0 {
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d declaration(s) invalid", invalid))
	}
	return nil
}

func firstInvalid(result ValidationResult) DeclarationResult {
	for _, d := range result.Declarations {
		if !d.Valid {
			return d
		}
	}
	return DeclarationResult{}
}
