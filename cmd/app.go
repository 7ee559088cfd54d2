// Package cmd implements the CLI application to manage a portfolio ledger.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/subcommands"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"github.com/etnz/tracker"
	"github.com/etnz/tracker/sqlitestore"
)

// Register the subcommands.
// A main package calls Register() to declare them, and Execute() runs the
// user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&accountCmd{}, "registry")
	c.Register(&assetCmd{}, "registry")

	c.Register(&tradeCmd{}, "ledger")
	c.Register(&transferCmd{}, "ledger")
	c.Register(&feeCmd{}, "ledger")

	c.Register(&issuesCmd{}, "reconciliation")
	c.Register(&resolveCmd{}, "reconciliation")
	c.Register(&recalcCmd{}, "reconciliation")
	c.Register(&reconcileCmd{}, "reconciliation")

	c.Register(&holdingsCmd{}, "reports")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to
// use global variables.

var configFile = flag.String("config", "tracker.toml", "Path to the TOML configuration file")

// appConfig is the TOML file layout. Tolerances are strings so the file can
// carry exact decimals and human-readable durations.
type appConfig struct {
	DatabasePath string `toml:"database_path"`

	MatchWindow          string `toml:"match_window"`
	QuantityEpsilon      string `toml:"quantity_epsilon"`
	FeeTolerance         string `toml:"fee_tolerance"`
	PriceRefreshInterval string `toml:"price_refresh_interval"`
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{DatabasePath: "tracker.db"}
	data, err := os.ReadFile(*configFile)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", *configFile, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", *configFile, err)
	}
	return cfg, nil
}

func (c appConfig) trackerConfig() (tracker.Config, error) {
	var cfg tracker.Config
	var err error
	if c.MatchWindow != "" {
		if cfg.MatchWindow, err = time.ParseDuration(c.MatchWindow); err != nil {
			return cfg, fmt.Errorf("match_window: %w", err)
		}
	}
	if c.PriceRefreshInterval != "" {
		if cfg.PriceRefreshInterval, err = time.ParseDuration(c.PriceRefreshInterval); err != nil {
			return cfg, fmt.Errorf("price_refresh_interval: %w", err)
		}
	}
	if c.QuantityEpsilon != "" {
		if cfg.QuantityEpsilon, err = decimal.NewFromString(c.QuantityEpsilon); err != nil {
			return cfg, fmt.Errorf("quantity_epsilon: %w", err)
		}
	}
	if c.FeeTolerance != "" {
		if cfg.FeeTolerance, err = decimal.NewFromString(c.FeeTolerance); err != nil {
			return cfg, fmt.Errorf("fee_tolerance: %w", err)
		}
	}
	return cfg, nil
}

// openTracker opens the configured database and builds the core on top of
// it. The returned store must be closed by the caller.
func openTracker() (*tracker.Tracker, *sqlitestore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	tcfg, err := cfg.trackerConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlitestore.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	prices := tracker.RegistryResolver{Assets: store}
	return tracker.New(store, store, store, prices, tcfg), store, nil
}

// fail prints the error and maps validation problems to a usage exit.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ve *tracker.ValidationError
	if errors.As(err, &ve) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}
