// Package config loads the trader configuration from CLI flags or a
// YAML file.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"autotrader/internal/entity"
)

// Run modes selected by the --mode flag.
const (
	ModeStandard = "standard"
	ModeReset    = "reset"
)

// Config is the resolved trader configuration.
type Config struct {
	Pair         entity.Pair
	DataDir      string
	JournalDir   string
	Feed         string
	FeedURL      string
	PollInterval time.Duration
	FetchTimeout time.Duration
	SellRatio    decimal.Decimal
	BuyRatio     decimal.Decimal
	Mode         string
	Force        bool
}

type configYaml struct {
	Pair         string `yaml:"pair"`
	DataDir      string `yaml:"data_dir"`
	JournalDir   string `yaml:"journal_dir"`
	Feed         string `yaml:"feed"`
	FeedURL      string `yaml:"feed_url"`
	PollInterval string `yaml:"poll_interval"`
	FetchTimeout string `yaml:"fetch_timeout"`
	SellRatio    string `yaml:"sell_ratio,omitempty"`
	BuyRatio     string `yaml:"buy_ratio,omitempty"`
}

// Get parses flags and, when --config is given, merges the YAML file
// over the flag defaults.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	pairFlag := flag.String("pair", "BTC_EUR", "trade pair, example: BTC_EUR")
	dataDir := flag.String("datadir", "./data", "directory holding the ledger csv files")
	feed := flag.String("feed", "blockchain", "price feed: blockchain or binance")
	feedURL := flag.String("feedurl", "", "ticker url override for the blockchain feed")
	pollInterval := flag.Duration("pollinterval", time.Minute, "evaluation interval")
	fetchTimeout := flag.Duration("fetchtimeout", 10*time.Second, "price feed fetch timeout")
	sellRatio := flag.String("sellratio", "1.06", "last/current rate ratio that triggers a sell")
	buyRatio := flag.String("buyratio", "0.94", "last/current rate ratio that triggers a buy")
	mode := flag.String("mode", ModeStandard, "standard, or reset to reinitialize ledgers to the seed state")
	force := flag.Bool("force", false, "allow reset to discard an existing trade history")
	flag.Parse()

	cfg := Config{
		DataDir:      *dataDir,
		Feed:         *feed,
		FeedURL:      *feedURL,
		PollInterval: *pollInterval,
		FetchTimeout: *fetchTimeout,
		Mode:         *mode,
		Force:        *force,
	}

	pairStr, sellStr, buyStr := *pairFlag, *sellRatio, *buyRatio

	if *configPath != "" {
		y, err := loadYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		if y.Pair != "" {
			pairStr = y.Pair
		}
		if y.DataDir != "" {
			cfg.DataDir = y.DataDir
		}
		if y.JournalDir != "" {
			cfg.JournalDir = y.JournalDir
		}
		if y.Feed != "" {
			cfg.Feed = y.Feed
		}
		if y.FeedURL != "" {
			cfg.FeedURL = y.FeedURL
		}
		if y.PollInterval != "" {
			cfg.PollInterval, err = time.ParseDuration(y.PollInterval)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'poll_interval' param in yaml config: %w", err)
			}
		}
		if y.FetchTimeout != "" {
			cfg.FetchTimeout, err = time.ParseDuration(y.FetchTimeout)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'fetch_timeout' param in yaml config: %w", err)
			}
		}
		if y.SellRatio != "" {
			sellStr = y.SellRatio
		}
		if y.BuyRatio != "" {
			buyStr = y.BuyRatio
		}
	}

	var err error
	cfg.Pair, err = getPairFromString(pairStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid pair %q: %w", pairStr, err)
	}

	cfg.SellRatio, err = decimal.NewFromString(sellStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sell ratio %q: %w", sellStr, err)
	}
	cfg.BuyRatio, err = decimal.NewFromString(buyStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid buy ratio %q: %w", buyStr, err)
	}
	if cfg.SellRatio.LessThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("sell ratio must be greater than 1, got %s", cfg.SellRatio)
	}
	if cfg.BuyRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) || !cfg.BuyRatio.IsPositive() {
		return Config{}, fmt.Errorf("buy ratio must be between 0 and 1, got %s", cfg.BuyRatio)
	}

	if cfg.Mode != ModeStandard && cfg.Mode != ModeReset {
		return Config{}, fmt.Errorf("invalid mode %q, want %q or %q", cfg.Mode, ModeStandard, ModeReset)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = filepath.Join(cfg.DataDir, "journal")
	}

	return cfg, nil
}

func loadYaml(path string) (configYaml, error) {
	var y configYaml
	f, err := os.ReadFile(path)
	if err != nil {
		return configYaml{}, err
	}
	if err := yaml.Unmarshal(f, &y); err != nil {
		return configYaml{}, err
	}
	return y, nil
}

func getPairFromString(pairStr string) (entity.Pair, error) {
	pairElements := strings.Split(pairStr, "_")
	if len(pairElements) != 2 {
		return entity.Pair{}, fmt.Errorf("invalid pair param")
	}
	return entity.Pair{From: pairElements[0], To: pairElements[1]}, nil
}
