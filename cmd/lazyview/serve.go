package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lazyview/internal/api"
	"lazyview/internal/execution"
)

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.cfg.NodeURL(e.cfg.Network); err != nil {
		return fmt.Errorf("default network: %w", err)
	}

	runners := make(map[string]*execution.Runner, len(e.cfg.Networks))
	for _, network := range e.cfg.NetworkNames() {
		runner, err := e.runner(network)
		if err != nil {
			return err
		}
		runners[network] = runner
	}
	sink, err := e.sink()
	if err != nil {
		return err
	}

	srv := api.NewServer(runners, api.Options{
		DefaultNetwork: e.cfg.Network,
		AllowedOrigins: e.cfg.AllowedOrigins,
		Sink:           sink,
		Logger:         e.logger,
	})
	return srv.ListenAndServe(e.ctx, e.cfg.Listen)
}
