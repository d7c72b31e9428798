package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultNetworks maps the built-in network names to their public nodes.
var DefaultNetworks = map[string]string{
	"mainnet": "https://fullnode.mainnet.aptoslabs.com",
	"testnet": "https://fullnode.testnet.aptoslabs.com",
	"devnet":  "https://fullnode.devnet.aptoslabs.com",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Network             string
	Networks            map[string]string
	CacheFolder         string
	LogFolder           string
	EnableModuleCaching bool
	LogLevel            string
	RequestTimeout      time.Duration

	FunctionID    string
	Args          []string
	TypeArgs      []string
	LedgerVersion uint64
	Out           string
	PGDSN         string

	Listen         string
	AllowedOrigins []string
}

// NodeURL returns the node base URL configured for network.
func (c Config) NodeURL(network string) (string, error) {
	if network == "" {
		network = c.Network
	}
	url, ok := c.Networks[network]
	if !ok || url == "" {
		return "", fmt.Errorf("no node url configured for network %q (known: %s)", network, strings.Join(c.NetworkNames(), ", "))
	}
	return url, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LAZYVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "mainnet")
	v.SetDefault("cache-folder", defaultCacheFolder())
	v.SetDefault("log-folder", ".log")
	v.SetDefault("enable-module-caching", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("request-timeout", time.Duration(0))
	v.SetDefault("listen", ":8000")
	v.SetDefault("allowed-origins", []string{"*"})

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	networks := make(map[string]string, len(DefaultNetworks))
	for name, url := range DefaultNetworks {
		networks[name] = url
	}
	for name, url := range v.GetStringMapString("networks") {
		networks[strings.ToLower(name)] = url
	}

	cfg := Config{
		Network:             strings.ToLower(v.GetString("network")),
		Networks:            networks,
		CacheFolder:         v.GetString("cache-folder"),
		LogFolder:           v.GetString("log-folder"),
		EnableModuleCaching: v.GetBool("enable-module-caching"),
		LogLevel:            v.GetString("log-level"),
		RequestTimeout:      v.GetDuration("request-timeout"),
		FunctionID:          v.GetString("function-id"),
		Args:                getStringSlice(v, "args"),
		TypeArgs:            getStringSlice(v, "type-args"),
		LedgerVersion:       v.GetUint64("ledger-version"),
		Out:                 v.GetString("out"),
		PGDSN:               v.GetString("pg-dsn"),
		Listen:              v.GetString("listen"),
		AllowedOrigins:      getStringSlice(v, "allowed-origins"),
	}

	return cfg, nil
}

func defaultCacheFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

// SplitList splits a comma separated list and drops blank entries.
func SplitList(input string) []string {
	return splitAndClean(input)
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
