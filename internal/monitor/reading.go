package monitor

import (
	"math"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/errors"
)

var (
	ErrInvalidReading    = errors.New().New(errors.ErrInvalidReading)
	ErrInvalidThresholds = errors.New().New(errors.ErrInvalidThresholds)
	ErrAlertNotFound     = errors.New().New(errors.ErrAlertNotFound)
)

// SensorReading is one timestamped sample from the grid.
type SensorReading struct {
	Voltage   float64   `json:"voltage"`
	Current   float64   `json:"current"`
	Power     float64   `json:"power"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects readings the evaluator must never see.
func (r SensorReading) Validate() error {
	for name, v := range map[string]float64{"voltage": r.Voltage, "current": r.Current, "power": r.Power} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New().WithData(errors.ErrInvalidReading, name+" is not finite")
		}
	}
	if r.Timestamp.IsZero() {
		return errors.New().WithData(errors.ErrInvalidReading, "missing timestamp")
	}
	return nil
}

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ThresholdConfig holds the safe operating ranges. Current.Min is carried
// for display but no rule checks it.
type ThresholdConfig struct {
	Voltage Range `json:"voltage"`
	Current Range `json:"current"`
	Power   Range `json:"power"`
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		Voltage: Range{Min: 180, Max: 250},
		Current: Range{Min: 0, Max: 10},
		Power:   Range{Min: 0, Max: 1000},
	}
}

func (c ThresholdConfig) Validate() error {
	for name, r := range map[string]Range{"voltage": c.Voltage, "current": c.Current, "power": c.Power} {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min >= r.Max {
			return errors.New().WithData(errors.ErrInvalidThresholds, struct {
				Metric string
				Min    float64
				Max    float64
			}{name, r.Min, r.Max})
		}
	}
	return nil
}
