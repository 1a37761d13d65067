// Package chart renders frontier results as PNG line charts.
package chart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/efficient-frontier/internal/frontier"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	charts "github.com/vicanso/go-charts/v2"
)

// Chart kinds accepted by Render.
const (
	KindFrontier   = "frontier"
	KindAllocation = "allocation"
)

const (
	defaultWidth  = 1000
	defaultHeight = 600
)

// ErrUnknownKind is returned by Render for an unsupported chart kind.
var ErrUnknownKind = errors.New("unknown chart kind")

// Options controls the rendered image size. Zero values use the defaults.
type Options struct {
	Width  int
	Height int
}

func (o Options) size() (int, int) {
	width, height := o.Width, o.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return width, height
}

// ParseKind normalizes a chart kind. An empty kind selects the frontier chart.
func ParseKind(kind string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "":
		return KindFrontier, nil
	case KindFrontier, KindAllocation:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownKind, kind, KindFrontier, KindAllocation)
	}
}

// Render dispatches to the renderer for kind.
func Render(kind string, result *frontier.Result, opts Options) ([]byte, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if k == KindAllocation {
		return Allocation(result, opts)
	}
	return Frontier(result, opts)
}

// Frontier draws portfolio standard deviation against target return.
func Frontier(result *frontier.Result, opts Options) ([]byte, error) {
	if err := checkResult(result); err != nil {
		return nil, err
	}

	stdDevs := make([]float64, len(result.Points))
	yMin, yMax := mathutil.Percent(result.Points[0].StdDev()), mathutil.Percent(result.Points[0].StdDev())
	for i, p := range result.Points {
		v := mathutil.RoundTo(mathutil.Percent(p.StdDev()), 4)
		stdDevs[i] = v
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 0.5
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	gmv := result.GlobalMinimum
	subtitle := fmt.Sprintf("min variance: return %.2f%%, std dev %.2f%%",
		mathutil.Percent(gmv.Mu()), mathutil.Percent(gmv.StdDev()))

	width, height := opts.size()
	p, err := charts.LineRender(
		[][]float64{stdDevs},
		charts.TitleTextOptionFunc("Efficient frontier • "+strings.Join(result.Assets, ", "), subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        returnLabels(result),
			SplitNumber: splitNumber(len(result.Points)),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"std dev %"},
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render frontier chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// Allocation draws each asset's weight across the swept target returns.
func Allocation(result *frontier.Result, opts Options) ([]byte, error) {
	if err := checkResult(result); err != nil {
		return nil, err
	}

	values := make([][]float64, len(result.Assets))
	for j := range values {
		values[j] = make([]float64, len(result.Points))
	}
	for i, p := range result.Points {
		for j := range result.Assets {
			values[j][i] = mathutil.RoundTo(mathutil.Percent(p.Weight(j)), 4)
		}
	}

	lowest := result.Lowest()
	subtitle := fmt.Sprintf("weights %% • lowest risk at %.2f%% return", mathutil.Percent(lowest.Mu()))

	width, height := opts.size()
	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc("Allocation • "+strings.Join(result.Assets, ", "), subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        returnLabels(result),
			SplitNumber: splitNumber(len(result.Points)),
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: result.Assets,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

func checkResult(result *frontier.Result) error {
	if result == nil || len(result.Points) < 2 {
		return errors.New("not enough frontier points to chart")
	}
	return nil
}

func returnLabels(result *frontier.Result) []string {
	labels := make([]string, len(result.Points))
	for i, p := range result.Points {
		labels[i] = fmt.Sprintf("%.1f%%", mathutil.Percent(p.Mu()))
	}
	return labels
}

func splitNumber(points int) int {
	if points <= 30 {
		split := points / 3
		if split < 3 {
			split = 3
		}
		return split
	}
	return 6
}
