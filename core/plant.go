package core

import "time"

// PlantHealthStatus describes discrete plant health states.
type PlantHealthStatus string

const (
	StatusSeverelyOverwatered PlantHealthStatus = "SEVERELY_OVERWATERED"
	StatusOverwatered         PlantHealthStatus = "OVERWATERED"
	StatusHealthy             PlantHealthStatus = "HEALTHY"
	StatusSlightlyDry         PlantHealthStatus = "SLIGHTLY_DRY"
	StatusNeedsWater          PlantHealthStatus = "NEEDS_WATER"
	StatusSeverelyDry         PlantHealthStatus = "SEVERELY_DRY"
	StatusUnknown             PlantHealthStatus = "UNKNOWN"
)

// Dryness and overwatering thresholds, expressed as percentages of the
// plant's watering frequency.
const (
	severelyOverwateredMaxThreshold = 30.0
	overwateredMaxThreshold         = 70.0
	healthyMaxThreshold             = 70.0
	slightlyDryMaxThreshold         = 100.0
	needsWaterMaxThreshold          = 130.0

	overwaterRecoveryEndThreshold      = 30.0
	overwateringSeverityLevelThreshold = 0.5
)

// IsHealthy reports whether the status counts toward a healthy streak.
func (s PlantHealthStatus) IsHealthy() bool {
	return s == StatusHealthy || s == StatusSlightlyDry
}

// NeedsWater reports whether the status warrants a watering reminder.
func (s PlantHealthStatus) NeedsWater() bool {
	return s == StatusNeedsWater || s == StatusSeverelyDry
}

// Plant is a user's plant as tracked by the feed backend. A zero
// PreviousLastWatered means no earlier watering is known; a zero
// HealthySince means the plant is not currently in a healthy run.
type Plant struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	WateringFrequencyDays int               `json:"watering_frequency_days"`
	LastWatered           time.Time         `json:"last_watered"`
	PreviousLastWatered   time.Time         `json:"previous_last_watered,omitempty"`
	HealthStatus          PlantHealthStatus `json:"health_status"`
	HealthySince          time.Time         `json:"healthy_since,omitempty"`
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// relativePercentage normalizes z in the interval [x,y] to [0,1].
func relativePercentage(x, y, z float64) float64 {
	if y == x {
		return 0
	}
	if z < x {
		z = x
	}
	if z > y {
		z = y
	}
	return (z - x) / (y - x)
}

// ComputeStatus derives a plant's health status at the given instant.
//
// Dryness is the share of the watering frequency elapsed since the last
// watering. Overwatering severity starts from how short the previous
// watering interval was, decays linearly as dryness grows, and is gone
// once dryness passes the recovery threshold. While effective severity
// is positive the plant is (severely) overwatered; afterwards the
// dryness ladder applies.
func ComputeStatus(lastWatered time.Time, wateringFrequencyDays int, previousLastWatered time.Time, now time.Time) PlantHealthStatus {
	if wateringFrequencyDays <= 0 || lastWatered.IsZero() {
		return StatusUnknown
	}

	daysSince := daysBetween(lastWatered, now)
	drynessPct := daysSince / float64(wateringFrequencyDays) * 100

	startingSeverity := 0.0
	if !previousLastWatered.IsZero() {
		intervalPct := daysBetween(previousLastWatered, lastWatered) / float64(wateringFrequencyDays) * 100
		switch {
		case intervalPct < severelyOverwateredMaxThreshold:
			startingSeverity = 1
		case intervalPct < overwateredMaxThreshold:
			startingSeverity = 1 - relativePercentage(severelyOverwateredMaxThreshold, overwateredMaxThreshold, intervalPct)
		}
	}

	decay := 1 - drynessPct/overwaterRecoveryEndThreshold
	if decay < 0 {
		decay = 0
	}
	if decay > 1 {
		decay = 1
	}
	effectiveSeverity := startingSeverity * decay

	if effectiveSeverity > 0 {
		if effectiveSeverity > overwateringSeverityLevelThreshold {
			return StatusSeverelyOverwatered
		}
		return StatusOverwatered
	}

	switch {
	case drynessPct <= healthyMaxThreshold:
		return StatusHealthy
	case drynessPct <= slightlyDryMaxThreshold:
		return StatusSlightlyDry
	case drynessPct <= needsWaterMaxThreshold:
		return StatusNeedsWater
	default:
		return StatusSeverelyDry
	}
}
