package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != "mainnet" {
		t.Fatalf("unexpected network %q", cfg.Network)
	}
	url, err := cfg.NodeURL("")
	if err != nil || url != "https://fullnode.mainnet.aptoslabs.com" {
		t.Fatalf("unexpected node url %q: %v", url, err)
	}
	if cfg.LogFolder != ".log" || cfg.LogLevel != "info" || cfg.EnableModuleCaching {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("unexpected timeout %v", cfg.RequestTimeout)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadFileMergesNetworks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lazyview.toml")
	content := `
network = "local"
cache-folder = "/tmp/cache"
enable-module-caching = true
request-timeout = "3s"

[networks]
local = "http://127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if url, err := cfg.NodeURL(""); err != nil || url != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected local url %q: %v", url, err)
	}
	if url, err := cfg.NodeURL("testnet"); err != nil || url != DefaultNetworks["testnet"] {
		t.Fatalf("default network lost: %q %v", url, err)
	}
	if !cfg.EnableModuleCaching || cfg.CacheFolder != "/tmp/cache" || cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := cfg.NodeURL("nowhere"); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}

func TestLoadFlagsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LAZYVIEW_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("call", pflag.ContinueOnError)
	flags.String("function-id", "", "")
	flags.String("args", "", "")
	flags.String("type-args", "", "")
	flags.Uint64("ledger-version", 0, "")
	if err := flags.Parse([]string{"--function-id", "0x1::coin::balance", "--args", "0x1, ,true", "--type-args", "0x1::aptos_coin::AptosCoin", "--ledger-version", "42"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FunctionID != "0x1::coin::balance" || cfg.LedgerVersion != 42 {
		t.Fatalf("unexpected call config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Args, []string{"0x1", "true"}) {
		t.Fatalf("unexpected args %v", cfg.Args)
	}
	if !reflect.DeepEqual(cfg.TypeArgs, []string{"0x1::aptos_coin::AptosCoin"}) {
		t.Fatalf("unexpected type args %v", cfg.TypeArgs)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("env not applied: %q", cfg.LogLevel)
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(" a, ,b "); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected split %v", got)
	}
	if got := SplitList(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
