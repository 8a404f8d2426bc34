package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querier/internal/descriptor"
)

// ParseResult holds the validated descriptors of one query.
type ParseResult struct {
	RequestID string              `json:"request_id"`
	Table     string              `json:"table"`
	Filters   []descriptor.Filter `json:"filters"`
	Sorts     []descriptor.Sort   `json:"sorts"`
	Page      *descriptor.Page    `json:"page,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <declaration> <query>",
		Short: "Validate a query and show its descriptors",
		Long: `Validate a query against a resource declaration and print the filter,
sort and page descriptors it resolves to.

The query is a bracket query string, or a JSON object with --json.

Examples:
  querier parse ./resources/people.yaml 'filter[age][>]=30&sort[name]=asc'
  querier parse ./resources/people.yaml '{"page": {"size": 5}}' --json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], args[1], cmd)
		},
	}

	addQueryFlags(cmd, opts)
	return cmd
}

func runParse(opts *QueryOptions, path, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prepared, err := prepareQuery(opts, path, raw, cmd)
	if err != nil {
		return outputQueryError(formatter, requestIDOf(prepared), err)
	}
	formatter.VerboseLog("Parsed query for %s", describeQuery(prepared))

	result, err := describe(prepared)
	if err != nil {
		return outputQueryError(formatter, requestIDOf(prepared), err)
	}

	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RequestID: result.RequestID})
	}
	return outputParseText(formatter, result)
}

// describe collects the validated descriptors in application order.
func describe(p *preparedQuery) (ParseResult, error) {
	result := ParseResult{
		RequestID: p.querier.ID(),
		Table:     p.resource.Table,
		Filters:   []descriptor.Filter{},
		Sorts:     []descriptor.Sort{},
	}

	filters, err := p.querier.Filters()
	if err != nil {
		return result, err
	}
	filters.Range(func(_ string, f descriptor.Filter) bool {
		result.Filters = append(result.Filters, f)
		return true
	})

	sorts, err := p.querier.Sorts()
	if err != nil {
		return result, err
	}
	sorts.Range(func(_ string, s descriptor.Sort) bool {
		result.Sorts = append(result.Sorts, s)
		return true
	})

	page, err := p.querier.Page()
	if err != nil {
		return result, err
	}
	if combined, ok := descriptor.PageOf(page); ok {
		result.Page = &combined
	}
	return result, nil
}

func outputParseText(formatter *OutputFormatter, result ParseResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Query for %s (request %s)\n", result.Table, result.RequestID)
	fmt.Fprintln(w)

	if len(result.Filters) == 0 && len(result.Sorts) == 0 && result.Page == nil {
		fmt.Fprintln(w, "No filters, sorts or page.")
		return nil
	}
	for _, f := range result.Filters {
		fmt.Fprintf(w, "  filter  %s[%s] = %v", f.Name, f.Operator, f.Value)
		if f.Field != f.Name {
			fmt.Fprintf(w, "  (column %s)", f.Field)
		}
		fmt.Fprintln(w)
	}
	for _, s := range result.Sorts {
		fmt.Fprintf(w, "  sort    %s %s", s.Name, s.Order)
		if s.Field != s.Name {
			fmt.Fprintf(w, "  (column %s)", s.Field)
		}
		fmt.Fprintln(w)
	}
	if p := result.Page; p != nil {
		fmt.Fprintf(w, "  page    size=%d number=%d offset=%d\n", p.Size, p.Number, p.Offset)
	}
	return nil
}
