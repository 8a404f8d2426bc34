package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querier/internal/harness"
)

// Golden file states reported per scenario.
const (
	GoldenNone     = ""
	GoldenMatch    = "match"
	GoldenUpdated  = "updated"
	GoldenMismatch = "mismatch"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob over scenario file names
}

// CaseOutcome is what one query case produced: the SQL it compiled to, or
// the layer that rejected it.
type CaseOutcome struct {
	Name  string `json:"name"`
	SQL   string `json:"sql,omitempty"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
	Layer string `json:"layer,omitempty"`
}

// ScenarioResult is one scenario file's outcome.
type ScenarioResult struct {
	Name   string        `json:"name"`
	Pass   bool          `json:"pass"`
	Cases  []CaseOutcome `json:"cases,omitempty"`
	Golden string        `json:"golden,omitempty"`
	Errors []string      `json:"errors,omitempty"`
}

// TestResult totals a run over a scenarios directory.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Cases     int              `json:"cases"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	r.Cases += len(s.Cases)
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run query scenarios",
		Long: `Run YAML query scenarios against their resource declarations.

Every scenario seeds a fresh in-memory database and runs its cases in order.
A case passes when its SQL, parameters, rows or rejection match what it
expects. Each case is listed with the SQL it compiled to, or with the layer
that rejected it. A golden/<scenario>.golden file next to a scenario pins
the full trace as well.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  querier test ./scenarios
  querier test ./scenarios --filter "people*"
  querier test ./scenarios --update
  querier test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, "scenarios directory not found: "+dir)
	}

	paths, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to find scenarios: %v", err))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, path := range paths {
		result.add(runScenario(ctx, path, opts.Update))
	}

	if opts.Format == "json" {
		return writeTestJSON(cmd.OutOrStdout(), result)
	}
	return writeTestText(cmd.OutOrStdout(), result)
}

// findScenarioFiles lists .yaml and .yml files under dir, skipping golden
// directories.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads and runs one scenario file, then checks or rewrites its
// golden trace.
func runScenario(ctx context.Context, path string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	out := ScenarioResult{Name: scenario.Name}
	result, err := harness.RunContext(ctx, scenario)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("scenario did not run: %v", err)}
		return out
	}

	for _, event := range result.Trace {
		out.Cases = append(out.Cases, CaseOutcome{
			Name:  event.Case,
			SQL:   event.SQL,
			Rows:  len(event.Rows),
			Error: event.Error,
			Layer: event.Layer,
		})
	}
	out.Errors = append(out.Errors, result.Errors...)

	snapshot, err := (&harness.TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace}).Marshal()
	if err == nil {
		out.Golden, err = checkGolden(goldenFilePath(path), snapshot, update)
	}
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	if out.Golden == GoldenMismatch {
		out.Errors = append(out.Errors, "Golden file mismatch (run with --update to regenerate)")
	}

	out.Pass = len(out.Errors) == 0
	return out
}

// checkGolden compares snapshot with the golden file at path, or writes it
// when update is set. A missing golden file is not a failure.
func checkGolden(path string, snapshot []byte, update bool) (string, error) {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return GoldenNone, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return GoldenNone, fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return GoldenNone, nil
	case err != nil:
		return GoldenNone, fmt.Errorf("failed to read golden file: %w", err)
	case bytes.Equal(want, snapshot):
		return GoldenMatch, nil
	default:
		return GoldenMismatch, nil
	}
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := writeJSON(w, response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, response.Error.Message)
	}
	return nil
}

// writeTestText prints each scenario with its cases, then a summary:
//
//	✓ people_basic
//	    thirty year olds  SELECT ... LIMIT ? OFFSET ?  2 row(s)
//	    negative age      rejected (consumer)          filter:age[>] ...
func writeTestText(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, s := range result.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		if s.Golden == GoldenUpdated {
			fmt.Fprintf(w, "%s %s (golden updated)\n", mark, s.Name)
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, s.Name)
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range s.Cases {
			switch {
			case c.Layer != "":
				fmt.Fprintf(tw, "    %s\trejected (%s)\t%s\n", c.Name, c.Layer, c.Error)
			case c.Error != "":
				fmt.Fprintf(tw, "    %s\tfailed\t%s\n", c.Name, c.Error)
			default:
				fmt.Fprintf(tw, "    %s\t%s\t%d row(s)\n", c.Name, c.SQL, c.Rows)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total (%d cases)\n",
		result.Passed, result.Failed, result.Total, result.Cases)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
