package config

import (
	"fmt"
	"runtime"

	"github.com/iwvelando/efficient-frontier/pkg/constants"
	"github.com/iwvelando/efficient-frontier/pkg/mathutil"
	"github.com/iwvelando/efficient-frontier/pkg/validation"
)

// SweepConfig defines the target returns the frontier is traced over: either
// an explicit list or a half-open range [Start, Stop) spaced by Step.
type SweepConfig struct {
	Start   float64   `yaml:"start,omitempty" mapstructure:"start"`
	Stop    float64   `yaml:"stop,omitempty" mapstructure:"stop"`
	Step    float64   `yaml:"step,omitempty" mapstructure:"step"`
	Returns []float64 `yaml:"returns,omitempty" mapstructure:"returns"`
	Workers int       `yaml:"workers,omitempty" mapstructure:"workers"` // 0 = sequential
}

// Normalize ensures defaults are applied before validation.
func (s *SweepConfig) Normalize() {
	if s == nil {
		return
	}
	if s.Start == 0 && s.Stop == 0 && s.Step == 0 {
		s.Start = constants.DefaultSweepStart
		s.Stop = constants.DefaultSweepStop
		s.Step = constants.DefaultSweepStep
	}
	if s.Workers < 0 {
		s.Workers = runtime.GOMAXPROCS(0)
	}
}

// Validate returns an error when the sweep cannot produce any target return.
func (s *SweepConfig) Validate() error {
	if s == nil {
		return fmt.Errorf("sweep configuration cannot be nil")
	}

	s.Normalize()

	if len(s.Returns) > 0 {
		return validation.ValidateReturns(s.Returns)
	}
	return validation.ValidateSweepRange(s.Start, s.Stop, s.Step)
}

// ReturnsVector returns the ordered target returns of the sweep.
func (s *SweepConfig) ReturnsVector() ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(s.Returns) > 0 {
		return append([]float64(nil), s.Returns...), nil
	}
	return mathutil.Arange(s.Start, s.Stop, s.Step), nil
}

// Parallel reports whether the sweep should be spread over workers.
func (s *SweepConfig) Parallel() bool {
	return s.Workers > 1
}

func (s *SweepConfig) rangeOverridden() bool {
	return s.Start != constants.DefaultSweepStart ||
		s.Stop != constants.DefaultSweepStop ||
		s.Step != constants.DefaultSweepStep
}
