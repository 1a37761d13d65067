// Package output provides utilities for formatting and displaying frontier results.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iwvelando/efficient-frontier/internal/frontier"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Column names of the tabular formats.
const (
	ColumnMu       = "mu"
	ColumnVariance = "variance"
	ColumnStdDev   = "std_dev"
)

// WeightColumn returns the column name holding the weight of asset.
func WeightColumn(asset string) string {
	return "w_" + asset
}

// Header returns the tabular column names for a frontier over assets.
func Header(assets []string) []string {
	header := make([]string, 0, len(assets)+3)
	header = append(header, ColumnMu)
	for _, asset := range assets {
		header = append(header, WeightColumn(asset))
	}
	return append(header, ColumnVariance, ColumnStdDev)
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(result *frontier.Result) {
	if result == nil || len(result.Points) == 0 {
		fmt.Printf("--- No frontier computed ---\n")
		return
	}

	p := message.NewPrinter(language.English)
	fmt.Printf("--- Efficient frontier for %s ---\n", strings.Join(result.Assets, ", "))

	columns := []string{"mu     "}
	for _, asset := range result.Assets {
		columns = append(columns, fmt.Sprintf("%9s", asset))
	}
	columns = append(columns, " variance", "std_dev", "Notes")
	fmt.Printf("%s\n", strings.Join(columns, " | "))

	rules := make([]string, len(columns))
	for i, c := range columns {
		rules[i] = strings.Repeat("_", len(c))
	}
	fmt.Printf("%s\n", strings.Join(rules, " | "))

	for i, point := range result.Points {
		_, _ = p.Printf("%6.2f%%", mathutil.Percent(point.Mu()))
		for _, w := range point.Weights() {
			_, _ = p.Printf(" | %8.2f%%", mathutil.Percent(w))
		}
		_, _ = p.Printf(" | %.6f | %6.2f%% | %s\n", point.Variance(), mathutil.Percent(point.StdDev()), rowNotes(result, i))
	}

	gmv := result.GlobalMinimum
	_, _ = p.Printf("\nMinimum-variance portfolio: return %.2f%%, std dev %.2f%%\n",
		mathutil.Percent(gmv.Mu()), mathutil.Percent(gmv.StdDev()))
	for i, asset := range result.Assets {
		_, _ = p.Printf("  %s: %.2f%%\n", asset, mathutil.Percent(gmv.Weight(i)))
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, warning := range result.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
}

func rowNotes(result *frontier.Result, i int) string {
	var notes []string
	if i == result.LowestRisk {
		notes = append(notes, "lowest risk")
	}
	if result.Dominated(i) {
		notes = append(notes, "dominated")
	}
	return strings.Join(notes, ",")
}

// CsvString renders the frontier in comma-separated value format, one row per
// target return.
func CsvString(result *frontier.Result) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	header := Header(result.Assets)
	for i, column := range header {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"%s"`, column)
	}
	b.WriteString("\n")

	for _, point := range result.Points {
		fmt.Fprintf(&b, `"%s"`, formatFloat(point.Mu()))
		for _, w := range point.Weights() {
			fmt.Fprintf(&b, `,"%s"`, formatFloat(w))
		}
		fmt.Fprintf(&b, `,"%s","%s"`, formatFloat(point.Variance()), formatFloat(point.StdDev()))
		b.WriteString("\n")
	}
	return b.String()
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(result *frontier.Result) {
	fmt.Print(CsvString(result))
}

// JSONFormat outputs the frontier as indented JSON.
func JSONFormat(result *frontier.Result) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
