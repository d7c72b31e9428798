package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"lazyview/internal/codec"
	"lazyview/internal/execution"
	"lazyview/internal/model"
)

func runEncode(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.FunctionID == "" {
		return fmt.Errorf("function id is required")
	}
	fnID, err := model.ParseFunctionID(e.cfg.FunctionID)
	if err != nil {
		return err
	}
	typeArgs, err := execution.ParseTypeArgs(e.cfg.TypeArgs)
	if err != nil {
		return err
	}

	client, err := e.client(e.cfg.Network)
	if err != nil {
		return err
	}
	fn, err := e.resolver(e.cfg.Network, client).Function(e.ctx, fnID)
	if err != nil {
		return err
	}
	params := make([]model.TypeTag, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Substitute(typeArgs)
	}
	encoded, err := codec.Encode(e.cfg.Args, params)
	if err != nil {
		return err
	}
	out := make([]string, len(encoded))
	for i, arg := range encoded {
		out[i] = hexutil.Encode(arg)
	}
	return printJSON(out)
}
