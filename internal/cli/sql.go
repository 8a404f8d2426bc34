package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querier/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	QueryOptions
	Dialect string
}

// SQLResult is a compiled statement.
type SQLResult struct {
	RequestID string `json:"request_id"`
	Dialect   string `json:"dialect"`
	SQL       string `json:"sql"`
	Params    []any  `json:"params"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "sql <declaration> <query>",
		Short: "Compile a query to parameterized SQL",
		Long: `Validate a query against a resource declaration and print the SQL it
compiles to. Values are never interpolated: every literal, including LIMIT
and OFFSET, is a bound parameter.

Examples:
  querier sql ./resources/people.yaml 'filter[age][>]=30&page[size]=10'
  querier sql ./resources/people.yaml 'sort[name]=desc' --dialect postgres`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(opts, args[0], args[1], cmd)
		},
	}

	addQueryFlags(cmd, &opts.QueryOptions)
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "placeholder style (sqlite|postgres)")

	return cmd
}

func runSQL(opts *SQLOptions, path, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dialect, err := querysql.ParseDialect(opts.Dialect)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --dialect", err)
	}

	prepared, err := prepareQuery(&opts.QueryOptions, path, raw, cmd)
	if err != nil {
		return outputQueryError(formatter, requestIDOf(prepared), err)
	}

	compiler := &querysql.Compiler{Dialect: dialect, TieBreaker: prepared.resource.TieBreaker}
	sql, params, err := compiler.Compile(prepared.sel)
	if err != nil {
		return outputQueryError(formatter, requestIDOf(prepared), err)
	}
	formatter.VerboseLog("Compiled %s for %s", dialect, describeQuery(prepared))

	if opts.Format == "json" {
		if params == nil {
			params = []any{}
		}
		result := SQLResult{
			RequestID: prepared.querier.ID(),
			Dialect:   dialect.String(),
			SQL:       sql,
			Params:    params,
		}
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RequestID: result.RequestID})
	}

	fmt.Fprint(formatter.Writer, querysql.Format(sql, params))
	return nil
}
