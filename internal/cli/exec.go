package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querier/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	QueryOptions
	Database string
}

// ExecResult holds the rows a query returned.
type ExecResult struct {
	RequestID string      `json:"request_id"`
	Rows      []store.Row `json:"rows"`
	Count     int         `json:"count"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "exec <declaration> <query>",
		Short: "Run a query against a SQLite database",
		Long: `Validate a query against a resource declaration, compile it and run it
against an existing SQLite database.

Exit codes:
  0 - Query ran
  1 - Query rejected by validation
  2 - Command error (missing declaration, database or table)

Examples:
  querier exec ./resources/people.yaml 'filter[age][>]=30' --db ./people.db
  querier exec ./resources/people.yaml 'page[size]=5' --db ./people.db --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1], cmd)
		},
	}

	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExec(opts *ExecOptions, path, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open creates missing files; a query needs existing data
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	prepared, err := prepareQuery(&opts.QueryOptions, path, raw, cmd)
	if err != nil {
		return outputQueryError(formatter, requestIDOf(prepared), err)
	}

	st, err := store.Open(opts.Database, store.WithTieBreaker(prepared.resource.TieBreaker))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := st.Select(ctx, prepared.sel)
	if err != nil {
		_ = formatter.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeExecution, err)
	}
	formatter.VerboseLog("Fetched %d row(s) for %s", len(rows), describeQuery(prepared))

	result := ExecResult{RequestID: prepared.querier.ID(), Rows: rows, Count: len(rows)}
	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RequestID: result.RequestID})
	}
	return outputRowsText(formatter, prepared.resource.Columns, result)
}

// outputRowsText prints rows as an aligned table. Columns come from the
// declaration, or from the first row for SELECT *.
func outputRowsText(formatter *OutputFormatter, columns []string, result ExecResult) error {
	w := formatter.Writer
	if result.Count == 0 {
		fmt.Fprintln(w, "No rows.")
		return nil
	}
	if len(columns) == 0 {
		columns = result.Rows[0].Keys()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range result.Rows {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			v, _ := row.Get(col)
			if v == nil {
				fmt.Fprint(tw, "NULL")
			} else {
				fmt.Fprint(tw, v)
			}
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d row(s)\n", result.Count)
	return nil
}
