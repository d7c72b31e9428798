package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"lazyview/internal/codec"
	"lazyview/internal/model"
	"lazyview/internal/state"
)

func runModule(cmd *cobra.Command, args []string) error {
	id, err := model.ParseModuleID(args[0])
	if err != nil {
		return err
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.client(e.cfg.Network)
	if err != nil {
		return err
	}
	abi, err := e.resolver(e.cfg.Network, client).ABI(e.ctx, id)
	if err != nil {
		return err
	}
	return printJSON(abi)
}

func runResource(cmd *cobra.Command, args []string) error {
	owner, err := model.ParseAddress(args[0])
	if err != nil {
		return err
	}
	tag, err := model.ParseStructTag(args[1])
	if err != nil {
		return err
	}
	version, _ := cmd.Flags().GetUint64("ledger-version")

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.client(e.cfg.Network)
	if err != nil {
		return err
	}
	modules := e.resolver(e.cfg.Network, client)
	store := state.NewLazyStorage(client, modules, version, e.logger)

	data, found, err := store.GetResource(e.ctx, owner, tag)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("resource %s not found under %s", tag, owner)
	}
	t := model.StructOf(tag)
	raw, err := codec.NewDecoder(modules).Decode(e.ctx, data, t)
	if err != nil {
		return err
	}
	labeled, err := codec.NewAnnotator(modules, e.logger).Annotate(e.ctx, raw, t)
	if err != nil {
		return err
	}
	out, err := codec.Project(labeled)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runTable(cmd *cobra.Command, args []string) error {
	handle, err := model.ParseAddress(args[0])
	if err != nil {
		return err
	}
	key, err := hexutil.Decode(args[1])
	if err != nil {
		return fmt.Errorf("table key: %w", err)
	}
	version, _ := cmd.Flags().GetUint64("ledger-version")

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.client(e.cfg.Network)
	if err != nil {
		return err
	}
	store := state.NewLazyStorage(client, e.resolver(e.cfg.Network, client), version, e.logger)
	value, found, err := store.ResolveTableEntry(e.ctx, handle, key)
	if err != nil {
		return err
	}
	if !found {
		return printJSON(nil)
	}
	return printJSON(hexutil.Encode(value))
}
