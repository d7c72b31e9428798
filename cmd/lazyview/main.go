package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "lazyview",
		Short:        "Run Move view functions against live Aptos ledger state",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("network", "mainnet", "network name (mainnet, testnet, devnet or one from the config file)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-folder", ".log", "folder for per-run log files, empty disables them")
	pf.String("cache-folder", "", "folder holding the module cache (default: home directory)")
	pf.Bool("enable-module-caching", false, "persist modules of every address, not only 0x1 and 0x3")
	pf.Duration("request-timeout", 0, "timeout of a single node request, 0 means none")

	callCmd := &cobra.Command{
		Use:   "call",
		Short: "Execute a function and print its return values",
		RunE:  runCall,
	}
	callCmd.Flags().StringP("function-id", "f", "", "function as <address>::<module>::<function>, e.g. 0x1::block::get_current_block_height")
	callCmd.Flags().StringSliceP("args", "a", nil, "arguments (comma-separated)")
	callCmd.Flags().StringSliceP("type-args", "t", nil, "type arguments (comma-separated)")
	callCmd.Flags().Uint64P("ledger-version", "l", 0, "ledger version, 0 means latest")
	callCmd.Flags().String("out", "", "optional JSONL file receiving a record of the call")
	callCmd.Flags().String("pg-dsn", "", "optional Postgres DSN receiving a record of the call")
	root.AddCommand(callCmd)

	moduleCmd := &cobra.Command{
		Use:   "module <address>::<name>",
		Short: "Print the ABI of a module",
		Args:  cobra.ExactArgs(1),
		RunE:  runModule,
	}
	root.AddCommand(moduleCmd)

	resourceCmd := &cobra.Command{
		Use:   "resource <address> <struct type>",
		Short: "Print a decoded account resource",
		Args:  cobra.ExactArgs(2),
		RunE:  runResource,
	}
	resourceCmd.Flags().Uint64P("ledger-version", "l", 0, "ledger version, 0 means latest")
	root.AddCommand(resourceCmd)

	tableCmd := &cobra.Command{
		Use:   "table <handle> <key hex>",
		Short: "Print the raw value of a table item",
		Args:  cobra.ExactArgs(2),
		RunE:  runTable,
	}
	tableCmd.Flags().Uint64P("ledger-version", "l", 0, "ledger version, 0 means latest")
	root.AddCommand(tableCmd)

	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the encoded arguments of a function call",
		RunE:  runEncode,
	}
	encodeCmd.Flags().StringP("function-id", "f", "", "function as <address>::<module>::<function>")
	encodeCmd.Flags().StringSliceP("args", "a", nil, "arguments (comma-separated)")
	encodeCmd.Flags().StringSliceP("type-args", "t", nil, "type arguments (comma-separated)")
	root.AddCommand(encodeCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve function calls over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":8000", "listen address")
	serveCmd.Flags().StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins, empty disables CORS")
	serveCmd.Flags().String("out", "", "optional JSONL file receiving a record of every call")
	serveCmd.Flags().String("pg-dsn", "", "optional Postgres DSN receiving a record of every call")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
