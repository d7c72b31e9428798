package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lazyview/internal/execution"
	"lazyview/internal/model"
)

func runCall(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.FunctionID == "" {
		return fmt.Errorf("function id is required")
	}

	runner, err := e.runner(e.cfg.Network)
	if err != nil {
		return err
	}
	sink, err := e.sink()
	if err != nil {
		return err
	}

	req := execution.Request{
		Function:      e.cfg.FunctionID,
		TypeArgs:      e.cfg.TypeArgs,
		Args:          e.cfg.Args,
		LedgerVersion: e.cfg.LedgerVersion,
	}
	started := time.Now()
	res, callErr := runner.Call(e.ctx, req)
	if sink != nil {
		rec := execution.NewCallRecord(e.cfg.Network, req, res, callErr, started)
		if err := sink.PutCallBatch(e.ctx, []model.CallRecord{rec}); err != nil {
			e.logger.Warn("store call record failed", zap.Error(err))
		}
	}
	if callErr != nil {
		e.logger.Error("call failed", zap.String("function", req.Function), zap.Error(callErr))
		// the result still carries the log location
		res = execution.Result{LogPath: e.logPath, ReturnValues: []any{}}
		if err := printJSON(res); err != nil {
			return err
		}
		return callErr
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
