// Package config defines the data structures related to configuration and
// includes functions for loading the config and the market data it points to.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/validation"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Configuration holds all configuration for efficient-frontier.
type Configuration struct {
	Market  MarketConfig  `yaml:"market,omitempty" mapstructure:"market"`
	Assets  []string      `yaml:"assets,omitempty" mapstructure:"assets"`
	Sweep   SweepConfig   `yaml:"sweep,omitempty" mapstructure:"sweep"`
	Logging LoggingConfig `yaml:"logging,omitempty" mapstructure:"logging"`
	Output  OutputConfig  `yaml:"output,omitempty" mapstructure:"output"`
}

// MarketConfig locates the market data. When PricesFile is set the market is
// derived from prices, otherwise TableFile is read.
type MarketConfig struct {
	TableFile      string `yaml:"tableFile,omitempty" mapstructure:"tableFile"`
	PricesFile     string `yaml:"pricesFile,omitempty" mapstructure:"pricesFile"`
	PeriodsPerYear int    `yaml:"periodsPerYear,omitempty" mapstructure:"periodsPerYear"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetDefault("market.tableFile", constants.DefaultTableFile)
	v.SetDefault("market.periodsPerYear", constants.DefaultPeriodsPerYear)
	v.SetDefault("sweep.start", constants.DefaultSweepStart)
	v.SetDefault("sweep.stop", constants.DefaultSweepStop)
	v.SetDefault("sweep.step", constants.DefaultSweepStep)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	for i, asset := range configuration.Assets {
		configuration.Assets[i] = strings.TrimSpace(asset)
	}
	configuration.Sweep.Normalize()
	return &configuration, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if len(c.Assets) > 0 {
		warnings = append(warnings, validation.ValidateAssetSelection(c.Assets)...)
	}
	if c.Market.PricesFile != "" && c.Market.TableFile != "" && c.Market.TableFile != constants.DefaultTableFile {
		warnings = append(warnings, fmt.Sprintf("Both pricesFile and tableFile are set; deriving the market from %s", c.Market.PricesFile))
	}
	if len(c.Sweep.Returns) > 0 && c.Sweep.rangeOverridden() {
		warnings = append(warnings, "Explicit sweep returns are set; start, stop and step are ignored")
	}

	return warnings
}

// LoadMarket loads the full asset universe described by the market section.
func (c *Configuration) LoadMarket(logger *zap.Logger) (*market.Market, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if c.Market.PricesFile != "" {
		prices, err := market.LoadPricesFile(c.Market.PricesFile)
		if err != nil {
			return nil, err
		}
		m, err := market.FromPrices(prices, c.Market.PeriodsPerYear)
		if err != nil {
			return nil, fmt.Errorf("failed to derive market from %s: %w", c.Market.PricesFile, err)
		}
		logger.Info("derived market from prices",
			zap.String("op", "config.LoadMarket"),
			zap.String("file", c.Market.PricesFile),
			zap.Int("assets", m.Len()),
			zap.Int("observations", len(prices.Prices)),
			zap.Int("periodsPerYear", c.Market.PeriodsPerYear),
		)
		return m, nil
	}

	if c.Market.TableFile == "" {
		return nil, fmt.Errorf("no market data configured: set market.tableFile or market.pricesFile")
	}
	m, err := market.LoadTableFile(c.Market.TableFile)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded market table",
		zap.String("op", "config.LoadMarket"),
		zap.String("file", c.Market.TableFile),
		zap.Int("assets", m.Len()),
	)
	return m, nil
}

// SelectedAssets returns the configured asset selection, or every asset of
// the universe in table order when none is configured.
func (c *Configuration) SelectedAssets(m *market.Market) []string {
	if len(c.Assets) == 0 {
		return m.Assets()
	}
	return append([]string(nil), c.Assets...)
}
