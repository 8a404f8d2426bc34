package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/querier/internal/decl"
	"github.com/roach88/querier/internal/querier"
	"github.com/roach88/querier/internal/queryir"
)

// QueryOptions holds flags shared by the parse, sql and exec commands.
type QueryOptions struct {
	*RootOptions
	JSON      bool   // query argument is a JSON object
	RequestID string // fixed request ID; generated when empty
}

// preparedQuery is a loaded declaration and a validated query over it.
type preparedQuery struct {
	resource *decl.Resource
	querier  *querier.Querier[queryir.Select]
	sel      queryir.Select
}

// addQueryFlags registers the flags of QueryOptions on cmd.
func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "treat the query as a JSON object instead of a query string")
	cmd.Flags().StringVar(&opts.RequestID, "request-id", "", "fixed request ID (default: generated UUIDv7)")
}

// prepareQuery loads the declaration at path, decodes raw and runs it
// through the three validation layers.
func prepareQuery(opts *QueryOptions, path, raw string, cmd *cobra.Command) (*preparedQuery, error) {
	resource, err := LoadResource(path)
	if err != nil {
		return nil, err
	}

	query, err := ParseQuery(raw, opts.JSON)
	if err != nil {
		return nil, err
	}

	qopts := []querier.Option{querier.WithLogger(commandLogger(opts.RootOptions, cmd))}
	if opts.RequestID != "" {
		qopts = append(qopts, querier.WithRequestID(opts.RequestID))
	}
	q, err := resource.Querier(query, qopts...)
	if err != nil {
		return nil, err
	}

	sel, err := q.Run(resource.Select())
	if err != nil {
		return &preparedQuery{resource: resource, querier: q}, err
	}
	return &preparedQuery{resource: resource, querier: q, sel: sel}, nil
}

// commandLogger logs to stderr at debug level with --verbose and discards
// everything otherwise.
func commandLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// outputQueryError reports a failed query and returns the matching exit
// error. requestID is empty when no Querier was built.
func outputQueryError(formatter *OutputFormatter, requestID string, err error) error {
	code, exit := queryErrorCode(err)
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
	}

	if formatter.Format == "json" {
		if encErr := writeJSON(formatter.Writer, CLIResponse{
			Status:    "error",
			Error:     &CLIError{Code: code, Message: message},
			RequestID: requestID,
		}); encErr != nil {
			return encErr
		}
	} else {
		_ = formatter.Error(code, message, nil)
	}
	return WrapExitError(exit, code, err)
}

func requestIDOf(p *preparedQuery) string {
	if p == nil || p.querier == nil {
		return ""
	}
	return p.querier.ID()
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func describeQuery(p *preparedQuery) string {
	return fmt.Sprintf("%s (request %s)", p.resource.Table, p.querier.ID())
}
