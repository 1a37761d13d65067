// Package constants provides shared constants for the efficient-frontier application.
package constants

// Market data constants
const (
	// ReturnColumn is the name of the table column holding each asset's
	// expected return.
	ReturnColumn = "mu"

	// DefaultPeriodsPerYear annualizes weekly observations. Fifty trading
	// weeks is the convention the price tables are prepared with.
	DefaultPeriodsPerYear = 50

	// DefaultTableFile is the default persisted covariance/returns table.
	DefaultTableFile = "data/cov-matrix-and-returns.csv"
)

// Sweep defaults
const (
	// DefaultSweepStart is the lowest target return of the default sweep.
	DefaultSweepStart = 0.05

	// DefaultSweepStop is the exclusive upper bound of the default sweep.
	DefaultSweepStop = 0.2

	// DefaultSweepStep is the spacing between target returns.
	DefaultSweepStep = 0.005

	// MaxSweepPoints bounds the number of target returns in one sweep.
	MaxSweepPoints = 10000

	// MinRecommendedAssets is the smallest selection the presentation layer
	// accepts without a diversification warning.
	MinRecommendedAssets = 3
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)

// Numeric constants
const (
	// PercentageMultiplier converts weights to percentages
	PercentageMultiplier = 100.0

	// WeightTolerance is the tolerance for comparing portfolio weights
	WeightTolerance = 1e-9
)
