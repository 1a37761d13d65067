package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/efficient-frontier/internal/config"
	"github.com/iwvelando/efficient-frontier/internal/frontier"
	"github.com/iwvelando/efficient-frontier/internal/logging"
	"github.com/iwvelando/efficient-frontier/pkg/chart"
	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"github.com/iwvelando/efficient-frontier/pkg/market"
	"github.com/iwvelando/efficient-frontier/pkg/output"
	"github.com/iwvelando/efficient-frontier/pkg/validation"
	"go.uber.org/zap"
)

// resolveOutputFormat picks the output format; the CLI flag wins over config.
func resolveOutputFormat(configured, override string) (string, error) {
	format := configured
	if override != "" {
		format = override
	}
	if format == "" {
		format = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		return "", err
	}
	return format, nil
}

// writeTable persists the market as a covariance/returns table.
func writeTable(path string, m *market.Market) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file %s: %w", path, err)
	}
	if err := m.WriteTable(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeChart renders the frontier as a PNG of the requested kind.
func writeChart(path, kind string, result *frontier.Result) error {
	png, err := chart.Render(kind, result, chart.Options{})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return fmt.Errorf("failed to write chart %s: %w", path, err)
	}
	return nil
}

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	tableOut := flag.String("write-table", "", "write the loaded market as a covariance/returns table to this path")
	chartOut := flag.String("chart", "", "write a PNG chart of the frontier to this path")
	chartKind := flag.String("chart-kind", chart.KindFrontier, "chart kind: frontier, allocation")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	outputFormat, err := resolveOutputFormat(conf.Output.Format, *outputFormatFlag)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	if *chartOut != "" {
		if _, err := chart.ParseKind(*chartKind); err != nil {
			logger.Fatal("invalid chart kind",
				zap.String("op", "main"),
				zap.String("kind", *chartKind),
				zap.Error(err),
			)
		}
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	returns, err := conf.Sweep.ReturnsVector()
	if err != nil {
		logger.Fatal("invalid sweep configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	m, err := conf.LoadMarket(logger)
	if err != nil {
		logger.Fatal("failed to load market data",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	if *tableOut != "" {
		if err := writeTable(*tableOut, m); err != nil {
			logger.Fatal("failed to write market table",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		logger.Info("wrote market table",
			zap.String("op", "main"),
			zap.String("file", *tableOut),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := frontier.Compute(ctx, logger, m, frontier.Request{
		Assets:  conf.SelectedAssets(m),
		Returns: returns,
		Workers: conf.Sweep.Workers,
	})
	if err != nil {
		logger.Fatal("failed to compute frontier",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	if *chartOut != "" {
		if err := writeChart(*chartOut, *chartKind, result); err != nil {
			logger.Fatal("failed to render chart",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(result)
	case constants.OutputFormatCSV:
		output.CsvFormat(result)
	case constants.OutputFormatJSON:
		if err := output.JSONFormat(result); err != nil {
			logger.Fatal("failed to encode frontier",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}
