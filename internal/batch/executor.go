// Package batch runs a batch of items through the payload builder and the
// dispatcher, one item at a time.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tgbatch/internal/bus"
	"tgbatch/internal/domain"
	"tgbatch/internal/payload"

	"github.com/google/uuid"
)

// Config holds the batch-wide values. They are read once before the first
// item and never re-resolved per item.
type Config struct {
	Operation      domain.OperationKind
	BinaryData     bool
	ContinueOnFail bool
}

// Result is the output of one Run.
type Result struct {
	RunID    string
	Outcomes []domain.Outcome
	Failed   int
}

// ExecutorConfig wires an Executor. Events is optional; a nil Logger uses slog.Default.
type ExecutorConfig struct {
	Dispatcher domain.Dispatcher
	Events     *bus.EventBus
	Logger     *slog.Logger
}

// Executor processes batches sequentially. It keeps no state between runs.
type Executor struct {
	dispatcher domain.Dispatcher
	events     *bus.EventBus
	logger     *slog.Logger
}

// NewExecutor builds an Executor from cfg.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		dispatcher: cfg.Dispatcher,
		events:     cfg.Events,
		logger:     cfg.Logger,
	}
}

// Run processes items in input order. With ContinueOnFail a failing item
// contributes one failure outcome at its position and the run goes on;
// otherwise the first failure stops the run and is returned as
// *domain.ItemError together with the outcomes of the items before it.
// A cancelled context stops the run between items.
func (e *Executor) Run(ctx context.Context, cfg Config, items []domain.InputItem, resolver domain.ParameterResolver) (*Result, error) {
	builder, err := payload.NewBuilder(cfg.Operation, cfg.BinaryData, resolver)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Outcomes: make([]domain.Outcome, 0, len(items)),
	}
	e.events.Emit(bus.Event{
		Type:      bus.EventBatchStarted,
		RunID:     res.RunID,
		Operation: cfg.Operation,
		Binary:    cfg.BinaryData,
		Items:     len(items),
	})
	e.logger.Info("batch started",
		"run_id", res.RunID,
		"operation", cfg.Operation,
		"binary", cfg.BinaryData,
		"continue_on_fail", cfg.ContinueOnFail,
		"items", len(items),
	)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return res, e.abort(res, cfg, i, err)
		}

		records, dispatchTime, err := e.runItem(ctx, builder, res.RunID, cfg.Operation, i, item)
		if err != nil {
			e.logger.Warn("item failed", "run_id", res.RunID, "index", i, "err", err)
			if !cfg.ContinueOnFail {
				e.emitItem(res.RunID, cfg.Operation, i, domain.StateFailed, nil, err, dispatchTime)
				return res, e.abort(res, cfg, i, err)
			}
			failure := domain.Outcome{Index: i, JSON: map[string]any{}, Error: err.Error()}
			res.Outcomes = append(res.Outcomes, failure)
			res.Failed++
			e.emitItem(res.RunID, cfg.Operation, i, domain.StateFailed, []domain.Outcome{failure}, err, dispatchTime)
			continue
		}

		res.Outcomes = append(res.Outcomes, records...)
		e.emitItem(res.RunID, cfg.Operation, i, domain.StateSucceeded, records, nil, dispatchTime)
	}

	e.events.Emit(bus.Event{
		Type:      bus.EventBatchFinished,
		RunID:     res.RunID,
		Operation: cfg.Operation,
		Items:     len(items),
	})
	e.logger.Info("batch finished",
		"run_id", res.RunID,
		"outcomes", len(res.Outcomes),
		"failed", res.Failed,
	)
	return res, nil
}

// runItem walks one item through Building and Dispatching. It returns the
// time spent dispatching, which is zero when building failed.
func (e *Executor) runItem(ctx context.Context, builder *payload.Builder, runID string, op domain.OperationKind,
	index int, item domain.InputItem) ([]domain.Outcome, time.Duration, error) {
	e.emitItem(runID, op, index, domain.StateBuilding, nil, nil, 0)
	req, err := builder.Build(index, item)
	if err != nil {
		return nil, 0, err
	}

	e.emitItem(runID, op, index, domain.StateDispatching, nil, nil, 0)
	start := time.Now()
	raw, err := e.dispatcher.Dispatch(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}

	records, err := splitResponse(index, raw)
	if err != nil {
		return nil, elapsed, &domain.TransportError{Endpoint: req.Endpoint, Err: err}
	}
	return records, elapsed, nil
}

func (e *Executor) abort(res *Result, cfg Config, index int, err error) error {
	itemErr := &domain.ItemError{Index: index, Operation: cfg.Operation, Err: err}
	e.events.Emit(bus.Event{
		Type:      bus.EventBatchFinished,
		RunID:     res.RunID,
		Operation: cfg.Operation,
		Index:     index,
		Err:       itemErr,
	})
	e.logger.Error("batch aborted", "run_id", res.RunID, "index", index, "err", err)
	return itemErr
}

func (e *Executor) emitItem(runID string, op domain.OperationKind, index int, state domain.ItemState,
	outcomes []domain.Outcome, err error, dispatchTime time.Duration) {
	e.events.Emit(bus.Event{
		Type:      bus.EventItemState,
		RunID:     runID,
		Operation: op,
		Index:     index,
		State:     state,
		Outcomes:  outcomes,
		Err:       err,
		Duration:  dispatchTime,
	})
}

// splitResponse turns a provider response into outcomes: one per element
// when the response is a JSON array, one otherwise.
func splitResponse(index int, raw json.RawMessage) ([]domain.Outcome, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return []domain.Outcome{{Index: index, JSON: v}}, nil
	}
	out := make([]domain.Outcome, 0, len(arr))
	for _, el := range arr {
		out = append(out, domain.Outcome{Index: index, JSON: el})
	}
	return out, nil
}
