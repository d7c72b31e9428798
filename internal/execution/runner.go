// Package execution drives one function call: arguments are encoded, the
// engine runs against lazily loaded ledger state and the results are
// decoded into JSON-ready values.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lazyview/internal/codec"
	"lazyview/internal/model"
	"lazyview/internal/resolver"
	"lazyview/internal/state"
)

// Request is a call as entered by a user.
type Request struct {
	Function      string   `json:"function"`
	TypeArgs      []string `json:"type_args"`
	Args          []string `json:"args"`
	LedgerVersion uint64   `json:"ledger_version"`
}

// Result is the outcome of a successful call.
type Result struct {
	LogPath      string `json:"log_path"`
	ReturnValues []any  `json:"return_values"`
}

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	// LogPath is reported back in every Result.
	LogPath string
}

// Runner executes requests with one engine and one module resolver.
type Runner struct {
	cfg     RunConfig
	engine  Engine
	ledger  state.Ledger
	modules *resolver.Resolver
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine Engine, ledger state.Ledger, modules *resolver.Resolver, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, engine: engine, ledger: ledger, modules: modules, logger: logger}
}

// Modules returns the runner's module resolver.
func (r *Runner) Modules() *resolver.Resolver {
	return r.modules
}

// Logger returns the runner's logger.
func (r *Runner) Logger() *zap.Logger {
	return r.logger
}

// WithLogger returns a runner sharing everything but the logger.
func (r *Runner) WithLogger(logger *zap.Logger) *Runner {
	clone := *r
	clone.logger = logger
	return &clone
}

// WithModules returns a runner sharing everything but the module resolver.
func (r *Runner) WithModules(modules *resolver.Resolver) *Runner {
	clone := *r
	clone.modules = modules
	return &clone
}

// Call runs req and returns its projected return values.
func (r *Runner) Call(ctx context.Context, req Request) (Result, error) {
	if r.engine == nil {
		return Result{}, fmt.Errorf("engine is nil")
	}
	if r.modules == nil {
		return Result{}, fmt.Errorf("module resolver is nil")
	}

	fnID, err := model.ParseFunctionID(req.Function)
	if err != nil {
		return Result{}, err
	}
	typeArgs, err := ParseTypeArgs(req.TypeArgs)
	if err != nil {
		return Result{}, err
	}
	fn, err := r.modules.Function(ctx, fnID)
	if err != nil {
		return Result{}, err
	}
	if len(typeArgs) != fn.TypeParamCount {
		return Result{}, fmt.Errorf("%s expects %d type arguments, got %d", fnID, fn.TypeParamCount, len(typeArgs))
	}

	params := substituteAll(fn.Params, typeArgs)
	args, err := codec.Encode(req.Args, params)
	if err != nil {
		return Result{}, fmt.Errorf("encode arguments: %w", err)
	}

	store := state.NewLazyStorage(r.ledger, r.modules, req.LedgerVersion, r.logger)
	r.logger.Info("execute function",
		zap.String("function", fnID.String()),
		zap.Int("type_args", len(typeArgs)),
		zap.Int("args", len(args)),
		zap.Uint64("ledger_version", req.LedgerVersion),
	)
	started := time.Now()
	raw, err := r.engine.Execute(ctx, store, Call{Function: fnID, TypeArgs: typeArgs, Args: args})
	if err != nil {
		return Result{}, fmt.Errorf("execute %s: %w", fnID, err)
	}

	returns := substituteAll(fn.Returns, typeArgs)
	if len(raw) != len(returns) {
		return Result{}, fmt.Errorf("%s returned %d values, declares %d", fnID, len(raw), len(returns))
	}

	decoder := codec.NewDecoder(r.modules)
	annotator := codec.NewAnnotator(r.modules, r.logger)
	values := make([]any, len(raw))
	for i, data := range raw {
		v, err := decoder.Decode(ctx, data, returns[i])
		if err != nil {
			return Result{}, fmt.Errorf("return value %d: %w", i, err)
		}
		labeled, err := annotator.Annotate(ctx, v, returns[i])
		if err != nil {
			return Result{}, fmt.Errorf("return value %d: %w", i, err)
		}
		values[i], err = codec.Project(labeled)
		if err != nil {
			return Result{}, fmt.Errorf("return value %d: %w", i, err)
		}
	}

	stats := r.modules.Stats()
	r.logger.Info("function executed",
		zap.String("function", fnID.String()),
		zap.Int("return_values", len(values)),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int64("module_memory_hits", stats.MemoryHits),
		zap.Int64("module_disk_hits", stats.DiskHits),
		zap.Int64("module_network_fetches", stats.NetworkFetches),
	)
	return Result{LogPath: r.cfg.LogPath, ReturnValues: values}, nil
}

// ParseTypeArgs parses type argument strings, ignoring blank entries.
func ParseTypeArgs(raw []string) ([]model.TypeTag, error) {
	out := make([]model.TypeTag, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := model.ParseTypeTag(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func substituteAll(types []model.TypeTag, args []model.TypeTag) []model.TypeTag {
	out := make([]model.TypeTag, len(types))
	for i, t := range types {
		out[i] = t.Substitute(args)
	}
	return out
}

// NewCallRecord builds the persisted record for a finished call.
func NewCallRecord(network string, req Request, res Result, callErr error, executedAt time.Time) model.CallRecord {
	record := model.CallRecord{
		Network:       network,
		Function:      req.Function,
		TypeArgs:      req.TypeArgs,
		Args:          req.Args,
		LedgerVersion: req.LedgerVersion,
		ExecutedAt:    executedAt.UTC().Format(time.RFC3339Nano),
	}
	if callErr != nil {
		record.Error = callErr.Error()
		return record
	}
	if payload, err := json.Marshal(res.ReturnValues); err == nil {
		record.ReturnValues = payload
	} else {
		record.Error = fmt.Sprintf("marshal return values: %v", err)
	}
	return record
}
