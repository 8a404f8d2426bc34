package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/querier/internal/decl"
	"github.com/roach88/querier/internal/ordmap"
	"github.com/roach88/querier/internal/qs"
	"github.com/roach88/querier/internal/querier"
	"github.com/roach88/querier/internal/store"
	"github.com/roach88/querier/internal/validator"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	store    *store.Store
	resource *decl.Resource
	logger   *slog.Logger
	scenario string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the resource declaration
// 2. Create a fresh in-memory database and run the setup script
// 3. Build, compile and execute each case's query
// 4. Compare each case against its expectations
//
// An error means the scenario itself could not run; failed expectations are
// reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	resource, err := decl.Load(scenario.Resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}

	st, err := store.Open(":memory:", store.WithTieBreaker(resource.TieBreaker))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if scenario.Setup != "" {
		if err := st.Exec(ctx, scenario.Setup); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}

	h := &Harness{
		store:    st,
		resource: resource,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		scenario: scenario.Name,
	}

	result := NewResult()
	for i, c := range scenario.Cases {
		event, err := h.runCase(ctx, i, c)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
		result.AddTrace(event)

		for _, failure := range checkExpect(event, c.Expect) {
			result.AddError(failure.Error())
		}
	}

	return result, nil
}

// runCase builds, compiles and executes one case. Rejections are recorded in
// the event; only a malformed case is an error.
func (h *Harness) runCase(ctx context.Context, index int, c Case) (TraceEvent, error) {
	event := TraceEvent{
		Seq:       int64(index + 1),
		Case:      c.Name,
		RequestID: fmt.Sprintf("%s-%d", h.scenario, index+1),
	}

	query, err := caseQuery(c)
	if err != nil && !validator.IsValidationError(err) {
		return event, err
	}

	sel := h.resource.Select()
	if err == nil {
		sel, err = h.resource.Build(query,
			querier.WithLogger(h.logger),
			querier.WithRequestID(event.RequestID),
		)
	}
	if err != nil {
		event.Error = err.Error()
		if ve, ok := validator.AsValidationError(err); ok {
			event.Layer = string(ve.Layer)
		}
		h.logger.Info("case rejected", "case", c.Name, "error", err)
		return event, nil
	}

	event.SQL, event.Params, err = h.store.Compile(sel)
	if err != nil {
		event.Error = err.Error()
		return event, nil
	}

	event.Rows, err = h.store.Select(ctx, sel)
	if err != nil {
		event.Error = err.Error()
		return event, nil
	}

	h.logger.Info("case completed", "case", c.Name, "rows", len(event.Rows))
	return event, nil
}

// caseQuery decodes the case's query string or JSON object.
func caseQuery(c Case) (any, error) {
	if c.JSON != "" {
		query, err := ordmap.Decode([]byte(c.JSON))
		if err != nil {
			return nil, fmt.Errorf("failed to decode json query: %w", err)
		}
		return query, nil
	}
	// malformed brackets are a ValidationError, recorded like any rejection
	return qs.Parse(c.Query)
}
